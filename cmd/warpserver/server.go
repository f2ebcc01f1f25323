package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcrodman/warpserver/internal"
	"github.com/dcrodman/warpserver/internal/core"
)

// ServerCommand loads the config and runs the server until it is interrupted.
func ServerCommand(_ *cobra.Command, _ []string) error {
	config, err := core.LoadConfig(ConfigFlag)
	if err != nil {
		return err
	}
	fmt.Println("using configuration file:", ConfigFlag)

	// Change to the config directory so that any relative paths in the config
	// file will resolve.
	if err := os.Chdir(ConfigFlag); err != nil {
		return fmt.Errorf("error changing to config directory: %w", err)
	}

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register a SIGTERM handler so that Ctrl-C will shut the server down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	controller := &internal.Controller{
		Config:      config,
		WatchConfig: WatchConfigFlag,
	}
	if !NoConsoleFlag {
		controller.Console = os.Stdin
		controller.ConsoleOutput = os.Stdout
	}
	if err := controller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("shut down")
	return nil
}

func exitHandler(cancelFn func(), c chan os.Signal) {
	<-c
	fmt.Println("waiting to shut down gracefully...")
	cancelFn()

	<-c
	fmt.Println("hard exiting (killed)")
	os.Exit(1)
}
