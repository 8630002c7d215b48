package cli

import (
	"errors"

	"github.com/charmbracelet/huh"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("aborted")

// Prompter asks the user for input.
type Prompter interface {
	Input(title string, secret bool) (string, error)
	Confirm(title string) (bool, error)
}

// HuhPrompter prompts on the terminal.
type HuhPrompter struct{}

func (HuhPrompter) Input(title string, secret bool) (string, error) {
	var value string
	field := huh.NewInput().Title(title).Value(&value)
	if secret {
		field = field.EchoMode(huh.EchoModePassword)
	}
	if err := field.Run(); err != nil {
		return "", promptErr(err)
	}
	return value, nil
}

func (HuhPrompter) Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, promptErr(err)
	}
	return ok, nil
}

func promptErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}
