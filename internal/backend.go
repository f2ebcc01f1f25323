package internal

import (
	"context"

	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/core/frame"
)

// Backend is the server logic behind a frontend. The frontend owns the sockets
// and hands the Backend one frame at a time.
type Backend interface {
	// Name returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient is called for every accepted connection before anything is
	// read from it.
	SetUpClient(c *client.Client)

	// Handle is the main entry point for processing client frames. Frames from
	// one client are handled strictly in order. A returned error ends the connection.
	Handle(ctx context.Context, c *client.Client, f frame.Frame) error

	// Drop tells the client why it is being disconnected because of err.
	Drop(c *client.Client, err error)

	// Teardown is called exactly once after the client's connection has closed.
	Teardown(c *client.Client)
}
