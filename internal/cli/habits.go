package cli

import (
	"fmt"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/model"
)

// HabitsCmd groups the habit subcommands; bare "habits" lists.
type HabitsCmd struct {
	List HabitsListCmd `cmd:"" default:"1" help:"List your habits."`
	Add  HabitsAddCmd  `cmd:"" help:"Create a habit."`
	Edit HabitsEditCmd `cmd:"" help:"Edit a habit."`
	Rm   HabitsRmCmd   `cmd:"" help:"Delete a habit."`
}

// HabitsListCmd prints the signed-in user's habits.
type HabitsListCmd struct{}

func (c *HabitsListCmd) Run(ctx *Context) error {
	if _, err := ctx.requireLogin(); err != nil {
		return err
	}
	habits, err := ctx.Habits.List(ctx.Ctx)
	if err != nil {
		return failed("Failed to load habits: ", err)
	}
	printHabits(ctx.Out, "My Habits", habits, "No habits yet.")
	return nil
}

// HabitsAddCmd creates a habit. Blank names are rejected before any request.
type HabitsAddCmd struct {
	Name        string `arg:"" help:"Habit name."`
	Description string `short:"d" help:"Description."`
	Public      bool   `help:"Make this habit public."`
}

func (c *HabitsAddCmd) Run(ctx *Context) error {
	if _, err := ctx.requireLogin(); err != nil {
		return err
	}
	in := model.HabitInput{Name: c.Name, Description: c.Description, IsPublic: c.Public}
	if err := ctx.Habits.Create(ctx.Ctx, in); err != nil {
		return failed("Failed: ", err)
	}
	printSuccess(ctx.Out, "Habit created successfully!")
	return nil
}

// HabitsEditCmd updates a habit. Flags left unset keep their current value.
type HabitsEditCmd struct {
	ID          int64   `arg:"" help:"Habit id."`
	Name        *string `help:"New name."`
	Description *string `short:"d" help:"New description."`
	Public      *bool   `help:"Set visibility (--public or --public=false)."`
}

func (c *HabitsEditCmd) Run(ctx *Context) error {
	if _, err := ctx.requireLogin(); err != nil {
		return err
	}
	habit, err := ctx.Habits.Get(ctx.Ctx, c.ID)
	if err != nil {
		return failed("Failed to load habit: ", err)
	}

	in := habit.Input()
	if c.Name != nil {
		in.Name = *c.Name
	}
	if c.Description != nil {
		in.Description = *c.Description
	}
	if c.Public != nil {
		in.IsPublic = *c.Public
	}

	if err := ctx.Habits.Update(ctx.Ctx, c.ID, in); err != nil {
		return failed("Save failed: ", err)
	}
	printSuccess(ctx.Out, "Habit updated successfully!")
	return nil
}

// HabitsRmCmd deletes a habit, asking first unless --yes is given.
type HabitsRmCmd struct {
	ID  int64 `arg:"" help:"Habit id."`
	Yes bool  `short:"y" help:"Do not ask for confirmation."`
}

// Run deletes after confirmation and prints the remaining habits, removing
// the deleted one from the list it already has instead of fetching again.
func (c *HabitsRmCmd) Run(ctx *Context) error {
	if _, err := ctx.requireLogin(); err != nil {
		return err
	}
	habits, err := ctx.Habits.List(ctx.Ctx)
	if err != nil {
		return failed("Failed to load habits: ", err)
	}
	habit, ok := model.FindHabit(habits, c.ID)
	if !ok {
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: "Habit not found"}
	}

	if !c.Yes {
		confirmed, err := ctx.Prompt.Confirm(fmt.Sprintf("Delete this habit? (%s)", habit.Name))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(ctx.Out, mutedStyle.Render("Cancelled."))
			return nil
		}
	}

	if err := ctx.Habits.Delete(ctx.Ctx, c.ID); err != nil {
		return failed("Delete failed: ", err)
	}
	printSuccess(ctx.Out, "Habit deleted.")
	printHabits(ctx.Out, "My Habits", model.WithoutHabit(habits, c.ID), "No habits yet.")
	return nil
}

// PublicCmd prints everyone's public habits. It works without signing in.
type PublicCmd struct{}

func (c *PublicCmd) Run(ctx *Context) error {
	habits, err := ctx.Habits.ListPublic(ctx.Ctx)
	if err != nil {
		return failed("Failed to load public habits: ", err)
	}
	printPublic(ctx.Out, habits)
	return nil
}
