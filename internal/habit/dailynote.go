package habit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultDailyNoteFormat names daily notes like "2024-06-15".
const DefaultDailyNoteFormat = "YYYY-MM-DD"

// Day is a calendar date without a clock or zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar date of t in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ISO returns the date as YYYY-MM-DD.
func (d Day) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At returns the instant hh:mm on this day in loc.
func (d Day) At(hh, mm int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hh, mm, 0, 0, loc)
}

// ISODate returns t's calendar date as YYYY-MM-DD.
func ISODate(t time.Time) string {
	return DayOf(t).ISO()
}

// NormalizeDailyNoteFormat returns format trimmed, or fallback, or the default.
func NormalizeDailyNoteFormat(format, fallback string) string {
	if f := strings.TrimSpace(format); f != "" {
		return f
	}
	if f := strings.TrimSpace(fallback); f != "" {
		return f
	}
	return DefaultDailyNoteFormat
}

// FormatDailyNoteName renders t using a moment-style pattern (YYYY, MM, DD, ...).
func FormatDailyNoteName(t time.Time, format string) string {
	return compileDailyFormat(NormalizeDailyNoteFormat(format, "")).format(t)
}

// ParseDailyNoteName parses name strictly against a moment-style pattern.
// ok is false when the name does not match or names an impossible date.
func ParseDailyNoteName(name, format string) (Day, bool) {
	return compileDailyFormat(NormalizeDailyNoteFormat(format, "")).parse(name)
}

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokYear4
	tokYear2
	tokMonthName
	tokMonthShort
	tokMonth2
	tokMonth
	tokDay2
	tokDay
	tokWeekday
	tokWeekdayShort
)

// Longest tokens first so "MMMM" wins over "MM".
var formatTokens = []struct {
	text string
	kind tokenKind
}{
	{"YYYY", tokYear4},
	{"YY", tokYear2},
	{"MMMM", tokMonthName},
	{"MMM", tokMonthShort},
	{"MM", tokMonth2},
	{"M", tokMonth},
	{"dddd", tokWeekday},
	{"ddd", tokWeekdayShort},
	{"DD", tokDay2},
	{"D", tokDay},
}

type formatSegment struct {
	kind    tokenKind
	literal string
}

type dailyFormat struct {
	segments []formatSegment
	re       *regexp.Regexp
}

var dailyFormats sync.Map // pattern -> *dailyFormat

func compileDailyFormat(pattern string) *dailyFormat {
	if cached, ok := dailyFormats.Load(pattern); ok {
		return cached.(*dailyFormat)
	}
	f := &dailyFormat{segments: tokenize(pattern)}
	f.re = regexp.MustCompile("^" + f.expression() + "$")
	dailyFormats.Store(pattern, f)
	return f
}

func tokenize(pattern string) []formatSegment {
	var segs []formatSegment
	addLiteral := func(s string) {
		if n := len(segs); n > 0 && segs[n-1].kind == tokLiteral {
			segs[n-1].literal += s
			return
		}
		segs = append(segs, formatSegment{kind: tokLiteral, literal: s})
	}

	for i := 0; i < len(pattern); {
		if pattern[i] == '[' {
			if end := strings.IndexByte(pattern[i:], ']'); end > 0 {
				addLiteral(pattern[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range formatTokens {
			if strings.HasPrefix(pattern[i:], tok.text) {
				segs = append(segs, formatSegment{kind: tok.kind})
				i += len(tok.text)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		addLiteral(pattern[i : i+1])
		i++
	}
	return segs
}

func namesAlternation(short bool, weekdays bool) string {
	var names []string
	if weekdays {
		for d := time.Sunday; d <= time.Saturday; d++ {
			names = append(names, d.String())
		}
	} else {
		for m := time.January; m <= time.December; m++ {
			names = append(names, m.String())
		}
	}
	if short {
		for i, n := range names {
			names[i] = n[:3]
		}
	}
	return "(?i:(" + strings.Join(names, "|") + "))"
}

func (f *dailyFormat) expression() string {
	var b strings.Builder
	for _, seg := range f.segments {
		switch seg.kind {
		case tokLiteral:
			b.WriteString(regexp.QuoteMeta(seg.literal))
		case tokYear4:
			b.WriteString(`(\d{4})`)
		case tokYear2, tokMonth2, tokDay2:
			b.WriteString(`(\d{2})`)
		case tokMonth, tokDay:
			b.WriteString(`(\d{1,2})`)
		case tokMonthName:
			b.WriteString(namesAlternation(false, false))
		case tokMonthShort:
			b.WriteString(namesAlternation(true, false))
		case tokWeekday:
			b.WriteString(namesAlternation(false, true))
		case tokWeekdayShort:
			b.WriteString(namesAlternation(true, true))
		}
	}
	return b.String()
}

func (f *dailyFormat) format(t time.Time) string {
	var b strings.Builder
	for _, seg := range f.segments {
		switch seg.kind {
		case tokLiteral:
			b.WriteString(seg.literal)
		case tokYear4:
			fmt.Fprintf(&b, "%04d", t.Year())
		case tokYear2:
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case tokMonthName:
			b.WriteString(t.Month().String())
		case tokMonthShort:
			b.WriteString(t.Month().String()[:3])
		case tokMonth2:
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case tokMonth:
			b.WriteString(strconv.Itoa(int(t.Month())))
		case tokDay2:
			fmt.Fprintf(&b, "%02d", t.Day())
		case tokDay:
			b.WriteString(strconv.Itoa(t.Day()))
		case tokWeekday:
			b.WriteString(t.Weekday().String())
		case tokWeekdayShort:
			b.WriteString(t.Weekday().String()[:3])
		}
	}
	return b.String()
}

func lookupName(s string, weekdays bool) int {
	s = strings.ToLower(s)
	if weekdays {
		for d := time.Sunday; d <= time.Saturday; d++ {
			if name := strings.ToLower(d.String()); name == s || name[:3] == s {
				return int(d)
			}
		}
		return -1
	}
	for m := time.January; m <= time.December; m++ {
		if name := strings.ToLower(m.String()); name == s || name[:3] == s {
			return int(m)
		}
	}
	return -1
}

func (f *dailyFormat) parse(name string) (Day, bool) {
	m := f.re.FindStringSubmatch(name)
	if m == nil {
		return Day{}, false
	}
	year, month, day, weekday := -1, 1, 1, -1
	group := 1
	for _, seg := range f.segments {
		if seg.kind == tokLiteral {
			continue
		}
		raw := m[group]
		group++
		switch seg.kind {
		case tokYear4:
			year, _ = strconv.Atoi(raw)
		case tokYear2:
			yy, _ := strconv.Atoi(raw)
			if yy > 68 {
				year = 1900 + yy
			} else {
				year = 2000 + yy
			}
		case tokMonth2, tokMonth:
			month, _ = strconv.Atoi(raw)
		case tokMonthName, tokMonthShort:
			month = lookupName(raw, false)
		case tokDay2, tokDay:
			day, _ = strconv.Atoi(raw)
		case tokWeekday, tokWeekdayShort:
			weekday = lookupName(raw, true)
		}
	}
	if year < 0 || month < 1 || month > 12 || day < 1 {
		return Day{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return Day{}, false
	}
	if weekday >= 0 && int(t.Weekday()) != weekday {
		return Day{}, false
	}
	return Day{Year: year, Month: time.Month(month), Day: day}, true
}
