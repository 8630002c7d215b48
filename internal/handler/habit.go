package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/model"
	"github.com/sakif/habit-tracker/internal/service"
	"github.com/sakif/habit-tracker/internal/session"
)

const (
	habitCreatedMessage  = "Habit created successfully!"
	habitUpdatedMessage  = "Habit updated successfully!"
	habitDeletedMessage  = "Habit deleted."
	habitNotFoundMessage = "Habit not found"
)

type habitList struct {
	Loaded bool
	Habits []model.Habit
}

type habitForm struct {
	Heading     string
	Action      string
	Submit      string
	PublicLabel string
	Found       bool
	Input       model.HabitInput
}

func newHabitForm(in model.HabitInput) habitForm {
	return habitForm{
		Heading:     "Create New Habit",
		Action:      "/habits/new",
		Submit:      "Create Habit",
		PublicLabel: "Make this habit public",
		Found:       true,
		Input:       in,
	}
}

func editHabitForm(id int64, in model.HabitInput) habitForm {
	return habitForm{
		Heading:     "Edit Habit",
		Action:      "/habits/" + strconv.FormatInt(id, 10),
		Submit:      "Save Changes",
		PublicLabel: "Public",
		Found:       true,
		Input:       in,
	}
}

// HabitHandler serves the habit pages.
type HabitHandler struct {
	habits *service.HabitService
	pages  *Renderer
	logger *slog.Logger
}

// NewHabitHandler creates a HabitHandler.
func NewHabitHandler(habits *service.HabitService, pages *Renderer, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{habits: habits, pages: pages, logger: logger}
}

// HandleList renders the caller's habits.
//
// HTTP: GET /habits
func (h *HabitHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	habits, err := h.habits.List(r.Context())
	if err != nil {
		h.logger.Warn("loading habits", slog.String("error", err.Error()))
		h.pages.render(w, r, statusFor(err), pageHabits, view{
			Title: "My Habits",
			Alert: alert("Failed to load habits: ", err),
			Data:  habitList{},
		})
		return
	}

	h.pages.render(w, r, http.StatusOK, pageHabits, view{
		Title: "My Habits",
		Data:  habitList{Loaded: true, Habits: habits},
	})
}

// HandleNew renders an empty habit form.
//
// HTTP: GET /habits/new
func (h *HabitHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, pageHabitForm, view{
		Title: "New Habit",
		Data:  newHabitForm(model.HabitInput{}),
	})
}

// HandleCreate creates a habit. A blank name is rejected here and never
// reaches the backend.
//
// HTTP: POST /habits/new
func (h *HabitHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in := habitInput(r)
	if err := h.habits.Create(r.Context(), in); err != nil {
		h.pages.render(w, r, statusFor(err), pageHabitForm, view{
			Title: "New Habit",
			Alert: failure("Failed: ", err),
			Data:  newHabitForm(in),
		})
		return
	}
	redirect(w, r, "/habits", session.FlashSuccess, habitCreatedMessage)
}

// HandleEdit renders the edit form prefilled with the stored habit.
//
// HTTP: GET /habits/{id}
func (h *HabitHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := habitID(r)
	if !ok {
		h.notFound(w, r)
		return
	}

	habit, err := h.habits.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			h.notFound(w, r)
			return
		}
		h.pages.render(w, r, statusFor(err), pageHabitForm, view{
			Title: "Edit Habit",
			Alert: alert("Failed to load habit: ", err),
			Data:  habitForm{Heading: "Edit Habit"},
		})
		return
	}

	h.pages.render(w, r, http.StatusOK, pageHabitForm, view{
		Title: "Edit Habit",
		Data:  editHabitForm(id, habit.Input()),
	})
}

// HandleUpdate saves the edit form.
//
// HTTP: POST /habits/{id}
func (h *HabitHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := habitID(r)
	if !ok {
		h.notFound(w, r)
		return
	}

	in := habitInput(r)
	if err := h.habits.Update(r.Context(), id, in); err != nil {
		h.pages.render(w, r, statusFor(err), pageHabitForm, view{
			Title: "Edit Habit",
			Alert: failure("Save failed: ", err),
			Data:  editHabitForm(id, in),
		})
		return
	}
	redirect(w, r, "/habits", session.FlashSuccess, habitUpdatedMessage)
}

// HandleDeleteConfirm asks "Delete this habit?" before anything is sent.
//
// HTTP: GET /habits/{id}/delete
func (h *HabitHandler) HandleDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := habitID(r)
	if !ok {
		h.notFound(w, r)
		return
	}

	habit, err := h.habits.Get(r.Context(), id)
	if err != nil {
		redirect(w, r, "/habits", session.FlashError, alert("Delete failed: ", err))
		return
	}

	h.pages.render(w, r, http.StatusOK, pageHabitDelete, view{Title: "Delete Habit", Data: habit})
}

// HandleDelete issues the one DELETE call of a confirmed deletion.
//
// HTTP: POST /habits/{id}/delete
func (h *HabitHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := habitID(r)
	if !ok {
		h.notFound(w, r)
		return
	}

	if err := h.habits.Delete(r.Context(), id); err != nil {
		h.logger.Warn("deleting habit", slog.Int64("id", id), slog.String("error", err.Error()))
		redirect(w, r, "/habits", session.FlashError, alert("Delete failed: ", err))
		return
	}
	redirect(w, r, "/habits", session.FlashSuccess, habitDeletedMessage)
}

// HandlePublic renders every public habit. No session is needed.
//
// HTTP: GET /public
func (h *HabitHandler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	habits, err := h.habits.ListPublic(r.Context())
	if err != nil {
		h.logger.Warn("loading public habits", slog.String("error", err.Error()))
		h.pages.render(w, r, statusFor(err), pagePublic, view{
			Title: "Public Habits",
			Alert: "Failed to load public habits.",
			Data:  habitList{},
		})
		return
	}

	h.pages.render(w, r, http.StatusOK, pagePublic, view{
		Title: "Public Habits",
		Data:  habitList{Loaded: true, Habits: habits},
	})
}

func (h *HabitHandler) notFound(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusNotFound, pageHabitForm, view{
		Title: "Edit Habit",
		Alert: habitNotFoundMessage,
		Data:  habitForm{Heading: "Edit Habit"},
	})
}

func habitID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func habitInput(r *http.Request) model.HabitInput {
	return model.HabitInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		IsPublic:    r.PostFormValue("is_public") != "",
	}
}
