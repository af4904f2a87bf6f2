package registry

import "strings"

// UnknownSource prefixes the identity of widgets rendered without a
// declaring document.
const UnknownSource = "__unknown__"

// IsAnonymousSource reports whether sourcePath was generated for a widget
// without a document.
func IsAnonymousSource(sourcePath string) bool {
	return strings.HasPrefix(sourcePath, UnknownSource)
}
