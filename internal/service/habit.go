package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/habit-tracker/internal/api"
	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/model"
)

// NameRequiredMessage is shown when a habit is submitted without a name.
const NameRequiredMessage = "Please enter a name"

// HabitService lists and edits habits through the backend.
type HabitService struct {
	backend Backend
	logger  *slog.Logger
}

// NewHabitService creates a HabitService.
func NewHabitService(backend Backend, logger *slog.Logger) *HabitService {
	return &HabitService{backend: backend, logger: logger}
}

// List returns the caller's habits. A body that is not a JSON array is an
// empty list.
func (s *HabitService) List(ctx context.Context) ([]model.Habit, error) {
	return s.list(ctx, "/habits")
}

// ListPublic returns every public habit. The call carries no bearer token.
func (s *HabitService) ListPublic(ctx context.Context) ([]model.Habit, error) {
	return s.list(ctx, "/habits/public", api.WithoutAuth())
}

func (s *HabitService) list(ctx context.Context, path string, opts ...api.CallOption) ([]model.Habit, error) {
	body, err := s.backend.Get(ctx, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	if !body.IsArray() {
		s.logger.Debug("habit list is not an array", slog.String("path", path))
		return []model.Habit{}, nil
	}

	var habits []model.Habit
	if err := body.Decode(&habits); err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	return habits, nil
}

// Get finds one of the caller's habits. The backend has no single-habit
// endpoint, so this lists and picks.
func (s *HabitService) Get(ctx context.Context, id int64) (model.Habit, error) {
	habits, err := s.List(ctx)
	if err != nil {
		return model.Habit{}, err
	}
	h, ok := model.FindHabit(habits, id)
	if !ok {
		return model.Habit{}, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Habit not found"}
	}
	return h, nil
}

// Create validates in and sends one POST /habits.
func (s *HabitService) Create(ctx context.Context, in model.HabitInput) error {
	if err := ValidateHabit(in); err != nil {
		return err
	}
	if _, err := s.backend.Post(ctx, "/habits", in); err != nil {
		return fmt.Errorf("creating habit: %w", err)
	}
	s.logger.Info("habit created", slog.String("name", in.Name), slog.Bool("public", in.IsPublic))
	return nil
}

// Update validates in and sends one PUT /habits/{id}.
func (s *HabitService) Update(ctx context.Context, id int64, in model.HabitInput) error {
	if err := ValidateHabit(in); err != nil {
		return err
	}
	if _, err := s.backend.Put(ctx, habitPath(id), in); err != nil {
		return fmt.Errorf("updating habit %d: %w", id, err)
	}
	s.logger.Info("habit updated", slog.Int64("id", id))
	return nil
}

// Delete sends one DELETE /habits/{id}.
func (s *HabitService) Delete(ctx context.Context, id int64) error {
	if _, err := s.backend.Delete(ctx, habitPath(id)); err != nil {
		return fmt.Errorf("deleting habit %d: %w", id, err)
	}
	s.logger.Info("habit deleted", slog.Int64("id", id))
	return nil
}

// ValidateHabit is the only client-side rule: a name that isn't blank.
func ValidateHabit(in model.HabitInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperror.ValidationFailed("name", NameRequiredMessage)
	}
	return nil
}

func habitPath(id int64) string {
	return fmt.Sprintf("/habits/%d", id)
}
