package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sheets_append/internal/app"

	"github.com/carlmjohnson/exitcode"
	"github.com/rs/zerolog/log"
)

func main() {
	app.SetupEnvironment()
	log.Debug().Msg("Starting application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.CLI(ctx, os.Args[1:])
	stop()
	exitcode.Exit(err)
}
