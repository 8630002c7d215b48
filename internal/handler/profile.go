package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/habit-tracker/internal/model"
	"github.com/sakif/habit-tracker/internal/service"
	"github.com/sakif/habit-tracker/internal/session"
)

const profileSavedMessage = "Profile updated successfully!"

type profileForm struct {
	Loaded  bool
	Profile model.Profile
}

// ProfileHandler serves the profile page.
type ProfileHandler struct {
	profiles *service.ProfileService
	pages    *Renderer
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, pages *Renderer, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, pages: pages, logger: logger}
}

// HandleShow renders the profile form. A first-time user's empty profile
// is created by the service before the form is shown.
//
// HTTP: GET /profile
func (h *ProfileHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Load(r.Context())
	if err != nil {
		h.logger.Warn("loading profile", slog.String("error", err.Error()))
		h.pages.render(w, r, statusFor(err), pageProfile, view{
			Title: "My Profile",
			Alert: alert("Error loading profile: ", err),
			Data:  profileForm{},
		})
		return
	}

	h.pages.render(w, r, http.StatusOK, pageProfile, view{
		Title: "My Profile",
		Data:  profileForm{Loaded: true, Profile: p},
	})
}

// HandleSave saves all three fields.
//
// HTTP: POST /profile
func (h *ProfileHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	p := model.Profile{
		Username:  r.PostFormValue("username"),
		AvatarURL: r.PostFormValue("avatar_url"),
		Bio:       r.PostFormValue("bio"),
	}

	if err := h.profiles.Save(r.Context(), p); err != nil {
		h.pages.render(w, r, statusFor(err), pageProfile, view{
			Title: "My Profile",
			Alert: alert("Save failed: ", err),
			Data:  profileForm{Loaded: true, Profile: p},
		})
		return
	}
	redirect(w, r, "/profile", session.FlashSuccess, profileSavedMessage)
}
