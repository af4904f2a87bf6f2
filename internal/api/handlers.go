package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quipex/habit-button/internal/apperr"
	"github.com/quipex/habit-button/internal/group"
	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/registry"
	"github.com/quipex/habit-button/internal/widget"
)

// Widgets is the widget controller surface used by the handlers.
type Widgets interface {
	Mount(source, sourcePath string) widget.View
	Click(id string) (widget.View, error)
	View(id string) (widget.View, error)
	Unmount(id string) error
	IDs() []string
}

// Groups renders group blocks.
type Groups interface {
	Render(source, sourcePath string) group.View
}

// Records is the read side of the habit registry.
type Records interface {
	GetAll() []registry.Record
	GetDuplicates() map[string][]registry.Record
}

// Services bundles the domain collaborators of the API.
type Services struct {
	Widgets  Widgets
	Groups   Groups
	Registry Records
}

// Handler holds API route handlers.
type Handler struct {
	svc Services
}

// NewHandler creates a new Handler.
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

func decodeMount(w http.ResponseWriter, r *http.Request) (MountRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req MountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func writeWidgetError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error(op+" failed", slog.String("id", id), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// MountHabit handles POST /habits.
//
//	@Summary		Mount a habit block and render it
//	@Tags			habits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MountRequest	true	"Block source and declaring document"
//	@Success		201		{object}	HabitView
//	@Success		200		{object}	HabitView	"Block could not be mounted, view carries the error"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits [post]
func (h *Handler) MountHabit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMount(w, r)
	if !ok {
		return
	}
	view := h.svc.Widgets.Mount(req.Source, req.SourcePath)
	if view.ID == "" {
		// Configuration problems render inline instead of failing the request.
		writeJSON(w, http.StatusOK, view)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ListWidgets handles GET /habits.
//
//	@Summary		List mounted widget IDs
//	@Tags			habits
//	@Produce		json
//	@Success		200	{object}	WidgetListResponse
//	@Security		BearerAuth
//	@Router			/habits [get]
func (h *Handler) ListWidgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, WidgetListResponse{IDs: h.svc.Widgets.IDs()})
}

// GetHabit handles GET /habits/{id}.
//
//	@Summary		Render a mounted habit widget
//	@Tags			habits
//	@Produce		json
//	@Param			id	path		string	true	"Widget ID"
//	@Success		200	{object}	HabitView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits/{id} [get]
func (h *Handler) GetHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.svc.Widgets.View(id)
	if err != nil {
		writeWidgetError(w, "get habit", id, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// LogHabit handles POST /habits/{id}/log.
//
//	@Summary		Log a habit entry for now
//	@Tags			habits
//	@Produce		json
//	@Param			id	path		string	true	"Widget ID"
//	@Success		200	{object}	HabitView
//	@Failure		404	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits/{id}/log [post]
func (h *Handler) LogHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.svc.Widgets.Click(id)
	if err != nil {
		writeWidgetError(w, "log habit", id, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UnmountHabit handles DELETE /habits/{id}.
//
//	@Summary		Unmount a habit widget
//	@Tags			habits
//	@Param			id	path	string	true	"Widget ID"
//	@Success		204	"Widget unmounted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits/{id} [delete]
func (h *Handler) UnmountHabit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Widgets.Unmount(id); err != nil {
		writeWidgetError(w, "unmount habit", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Registry handles GET /registry.
//
//	@Summary		List every known habit record
//	@Tags			registry
//	@Produce		json
//	@Param			group	query		string	false	"Only records of this group"
//	@Success		200		{object}	RegistryResponse
//	@Security		BearerAuth
//	@Router			/registry [get]
func (h *Handler) Registry(w http.ResponseWriter, r *http.Request) {
	recs := h.svc.Registry.GetAll()
	if g := r.URL.Query().Get("group"); g != "" {
		want := habit.NormalizeGroup(g)
		filtered := recs[:0]
		for _, rec := range recs {
			if habit.NormalizeGroup(rec.Group) == want {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	writeJSON(w, http.StatusOK, RegistryResponse{Records: toRecordItems(recs), Total: len(recs)})
}

// Duplicates handles GET /registry/duplicates.
//
//	@Summary		List habit keys declared by more than one document
//	@Tags			registry
//	@Produce		json
//	@Success		200	{object}	DuplicatesResponse
//	@Security		BearerAuth
//	@Router			/registry/duplicates [get]
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DuplicatesResponse{Duplicates: toDuplicateItems(h.svc.Registry.GetDuplicates())})
}

// RenderGroup handles POST /groups.
//
//	@Summary		Render a group block
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MountRequest	true	"Block source and declaring document"
//	@Success		200		{object}	group.View
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/groups [post]
func (h *Handler) RenderGroup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Groups.Render(req.Source, req.SourcePath))
}
