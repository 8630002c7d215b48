package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/model"
)

const profilePath = "/profiles/me"

// ProfileService reads and writes the caller's profile.
type ProfileService struct {
	backend Backend
	logger  *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(backend Backend, logger *slog.Logger) *ProfileService {
	return &ProfileService{backend: backend, logger: logger}
}

// Load returns the caller's profile. First-time users have none: when the
// backend answers not-found, Load creates an empty profile with exactly one
// PUT and reads it back with exactly one more GET. It never loops, whatever
// the second GET answers.
func (s *ProfileService) Load(ctx context.Context) (model.Profile, error) {
	p, err := s.fetch(ctx)
	if err == nil || !errors.Is(err, apperror.ErrNotFound) {
		return p, err
	}

	s.logger.Info("no profile yet, creating an empty one")
	if err := s.Save(ctx, model.Profile{}); err != nil {
		return model.Profile{}, fmt.Errorf("auto-creating profile: %w", err)
	}

	return s.fetch(ctx)
}

// Save sends one PUT /profiles/me with all three fields.
func (s *ProfileService) Save(ctx context.Context, p model.Profile) error {
	if _, err := s.backend.Put(ctx, profilePath, p); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

func (s *ProfileService) fetch(ctx context.Context) (model.Profile, error) {
	body, err := s.backend.Get(ctx, profilePath)
	if err != nil {
		return model.Profile{}, fmt.Errorf("loading profile: %w", err)
	}

	var p model.Profile
	if body.IsJSON && !body.IsArray() {
		if err := body.Decode(&p); err != nil {
			return model.Profile{}, fmt.Errorf("loading profile: %w", err)
		}
	}
	return p, nil
}
