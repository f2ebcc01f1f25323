package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/core/metrics"
)

// How long a client being disconnected gets to flush its queue before its
// connection is closed.
const flushTimeout = 5 * time.Second

// frontend implements the concurrent client connection logic.
//
// Frames are read from any connected clients and passed to a backend instance, abstracting
// the lower level connection details away from the Backends.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger
	Metrics *metrics.Metrics

	listener *net.TCPListener
	limiter  *ipLimiter
}

// Start initializes the server backend and opens a TCP socket for the specified
// server. Call Serve to begin accepting clients.
func (f *frontend) Start(ctx context.Context) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}
	f.listener = socket
	f.limiter = newIPLimiter(f.Config.Connection.MaxConnectionsPerIPPerSecond)
	return nil
}

// Addr returns the address the frontend is listening on.
func (f *frontend) Addr() net.Addr {
	return f.listener.Addr()
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// Serve implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle
// them. It returns once ctx is cancelled and every client has disconnected.
func (f *frontend) Serve(ctx context.Context) error {
	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Addr())

	go func() {
		<-ctx.Done()
		_ = f.listener.Close()
	}()

	clientWg := &sync.WaitGroup{}
	lastPrune := time.Now()
	for {
		connection, err := f.listener.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			f.Logger.Warnf("failed to accept connection: %s", err.Error())
			continue
		}

		now := time.Now()
		if now.Sub(lastPrune) > time.Minute {
			f.limiter.prune(now)
			lastPrune = now
		}
		ip, _, _ := net.SplitHostPort(connection.RemoteAddr().String())
		if !f.limiter.Allow(ip, now) {
			f.Metrics.ConnectionLimited()
			f.Logger.Infof("[%s] rejected connection from %s: too many attempts", f.Backend.Identifier(), ip)
			_ = connection.Close()
			continue
		}

		clientWg.Add(1)
		go f.acceptClient(ctx, connection, clientWg)
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
	return nil
}

// acceptClient sets up the Client for a new connection, starts its writer, and
// moves into the frame processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := client.NewClient(connection)
	f.Metrics.ConnectionAccepted()
	f.Backend.SetUpClient(c)

	f.Logger.WithFields(c.LogFields()).Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())

	go c.WriteLoop()
	go f.closeOnShutdown(ctx, c)
	f.processPackets(ctx, c)
}

// closeOnShutdown makes sure a client whose writer is stuck cannot hold up
// shutting down.
func (f *frontend) closeOnShutdown(ctx context.Context, c *client.Client) {
	select {
	case <-c.Done():
		return
	case <-ctx.Done():
	}

	select {
	case <-c.Done():
	case <-time.After(flushTimeout):
		_ = c.Close()
	}
}

// processPackets starts a blocking loop dedicated to reading frames sent from
// a game client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	for {
		fr, err := c.ReadFrame()
		if err != nil {
			if _, ok := core.AsProtocolError(err); ok {
				f.Backend.Drop(c, err)
			} else if !isConnectionClosed(err) {
				f.Logger.WithFields(c.LogFields()).Warnf("[%s] error reading from client: %v", f.Backend.Identifier(), err)
			}
			return
		}

		if err = f.Backend.Handle(ctx, c, fr); err != nil {
			f.Backend.Drop(c, err)
			return
		}
	}
}

func isConnectionClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes it from the backend regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
		c.Disconnect("Internal server error")
	}

	// Give a pending ConnectionEnd the chance to reach the client.
	if _, disconnecting := c.DisconnectingSince(); disconnecting {
		select {
		case <-c.Done():
		case <-time.After(flushTimeout):
		}
	}
	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.Backend.Teardown(c)

	f.Logger.WithFields(c.LogFields()).Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}
