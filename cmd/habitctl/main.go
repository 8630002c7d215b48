// Command habitctl is the terminal client of the habit tracker.
//
//	habitctl login user@example.com
//	habitctl habits add "Run" --public
//	habitctl habits rm 3
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/sakif/habit-tracker/internal/cli"
	"github.com/sakif/habit-tracker/internal/config"
	"github.com/sakif/habit-tracker/internal/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var root cli.CLI
	kctx := kong.Parse(&root,
		kong.Name("habitctl"),
		kong.Description("Track habits from the terminal."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	log, closeLog, err := logger.New(logger.Config{Level: root.LogLevel, Prefix: "habitctl"}, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	appCtx, release, err := cli.Setup(ctx, &root, os.Stdout, log)
	if err == nil {
		err = kctx.Run(appCtx)
		release()
	}
	stop()
	closeLog.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
