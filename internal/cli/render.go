package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/sakif/habit-tracker/internal/model"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

const timeLayout = "2006-01-02 15:04"

func printHabits(w io.Writer, heading string, habits []model.Habit, empty string) {
	fmt.Fprintln(w, headingStyle.Render(heading))
	if len(habits) == 0 {
		fmt.Fprintln(w, mutedStyle.Render(empty))
		return
	}
	for _, h := range habits {
		line := fmt.Sprintf("%s %s", mutedStyle.Render(fmt.Sprintf("#%d", h.ID)), nameStyle.Render(h.Name))
		if h.IsPublic {
			line += " " + badgeStyle.Render("[public]")
		}
		fmt.Fprintln(w, line)
		if h.Description != "" {
			fmt.Fprintln(w, "   "+h.Description)
		}
		if !h.CreatedAt.IsZero() {
			fmt.Fprintln(w, "   "+mutedStyle.Render("Created: "+h.CreatedAt.Local().Format(timeLayout)))
		}
	}
}

func printPublic(w io.Writer, habits []model.Habit) {
	fmt.Fprintln(w, headingStyle.Render("Public Habits"))
	if len(habits) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No public habits yet."))
		return
	}
	for _, h := range habits {
		fmt.Fprintln(w, nameStyle.Render(h.Name))
		if h.Description != "" {
			fmt.Fprintln(w, "   "+h.Description)
		}
		when := "No date"
		if !h.CreatedAt.IsZero() {
			when = h.CreatedAt.Local().Format(timeLayout)
		}
		fmt.Fprintln(w, "   "+mutedStyle.Render("By: "+h.Owner()+" • "+when))
	}
}

func printProfile(w io.Writer, p model.Profile) {
	fmt.Fprintln(w, headingStyle.Render("My Profile"))
	fmt.Fprintf(w, "Username:   %s\n", orDash(p.Username))
	fmt.Fprintf(w, "Avatar URL: %s\n", orDash(p.AvatarURL))
	fmt.Fprintf(w, "Bio:        %s\n", orDash(p.Bio))
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
