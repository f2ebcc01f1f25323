// Package game implements the session server: the handshake, message dispatch,
// and the shared state every connected player sees.
package game

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/warpserver/internal/auth"
	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/core/data"
	"github.com/dcrodman/warpserver/internal/core/debug"
	"github.com/dcrodman/warpserver/internal/core/frame"
	"github.com/dcrodman/warpserver/internal/core/metrics"
	"github.com/dcrodman/warpserver/internal/lock"
	"github.com/dcrodman/warpserver/internal/packets"
	"github.com/dcrodman/warpserver/internal/subspace"
)

// tickInterval is how often connections are checked for heartbeats and timeouts.
const tickInterval = 10 * time.Millisecond

// reapAfter is how long a disconnecting client may take to flush its queue
// before the connection is closed regardless.
const reapAfter = 5 * time.Second

// Server holds everything shared between connected players.
type Server struct {
	Name   string
	Config *core.Config
	Logger *logrus.Logger
	DB     *gorm.DB
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time

	directory    *client.Directory
	locks        *lock.Table
	registry     *subspace.Registry
	policy       *auth.Policy
	packetLogger *debug.PacketLogger

	modControlText string
	motd           string
	settingsMu     sync.RWMutex

	// Serializes the capacity check with claiming a name.
	joinMu sync.Mutex
}

func (s *Server) Identifier() string {
	return s.Name
}

// Init prepares the shared state and starts the supervision loop, which runs
// until ctx is cancelled.
func (s *Server) Init(ctx context.Context) error {
	if s.Clock == nil {
		s.Clock = time.Now
	}

	s.directory = client.NewDirectory()
	s.locks = lock.NewTable()
	s.registry = &subspace.Registry{
		Store:  &data.SubspaceStore{DB: s.DB},
		Logger: s.Logger,
		Clock:  s.Clock,
	}
	if err := s.registry.Init(); err != nil {
		return fmt.Errorf("error initializing subspaces: %w", err)
	}

	s.policy = auth.NewPolicy(s.DB, s.Logger, s.Config.ReservedNames)
	s.policy.Clock = s.Clock
	s.policy.SetLimits(s.Config.MaxPlayers, s.Config.WhitelistEnabled)
	s.motd = s.Config.MOTD

	if s.Config.ModControl.Mode != 0 && s.Config.ModControl.File != "" {
		text, err := os.ReadFile(s.Config.ModControl.File)
		if err != nil {
			return fmt.Errorf("error reading mod control file: %w", err)
		}
		s.modControlText = string(text)
	}

	if s.Config.Debugging.PacketLoggingEnabled {
		s.packetLogger = &debug.PacketLogger{Logger: s.Logger}
	}
	s.Metrics.RegisterGauges(metrics.Gauges{
		Players:     func() float64 { return float64(s.directory.PlayerCount()) },
		Connections: func() float64 { return float64(s.directory.Count()) },
		Locks:       func() float64 { return float64(s.locks.Len()) },
		Subspaces:   func() float64 { return float64(len(s.registry.List())) },
	})

	go s.tickLoop(ctx)
	return nil
}

// SetUpClient registers a freshly accepted connection.
func (s *Server) SetUpClient(c *client.Client) {
	c.OnSend = func(c *client.Client, f frame.Frame) {
		s.Metrics.FrameSent()
		if s.packetLogger != nil {
			s.packetLogger.LogServerPacket(c.ID, f)
		}
	}
	s.directory.Add(c)
}

// Teardown undoes everything a client did once its connection has closed: its
// locks are released, other players are told it left, and it leaves its
// subspace. The client stays in the directory until this is done so that a
// new connection cannot take over its name halfway through.
func (s *Server) Teardown(c *client.Client) {
	defer s.directory.Remove(c)
	if c.Token() == "" {
		return
	}
	name := c.Name()

	for _, lockName := range s.locks.ReleaseAll(name) {
		s.broadcastLockRelease(name, lockName)
	}
	s.directory.Broadcast(&packets.PlayerDisconnect{PlayerName: name}, client.HighPriority, nil)
	s.registry.Leave(name)

	s.Logger.WithFields(c.LogFields()).Infof("[%s] %s left the server", s.Name, name)
}

func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(s.Clock())
		}
	}
}

// tick sends heartbeats to quiet connections and drops the ones that have
// stopped talking to us.
func (s *Server) tick(now time.Time) {
	heartbeat := s.Config.Connection.HeartbeatInterval

	for _, c := range s.directory.All() {
		if since, disconnecting := c.DisconnectingSince(); disconnecting {
			if now.Sub(since) > reapAfter {
				s.Logger.WithFields(c.LogFields()).Warnf("[%s] closing connection stuck disconnecting", s.Name)
				_ = c.Close()
			}
			continue
		}

		timeout := s.Config.Connection.AuthTimeout
		if c.IsAuthenticated() {
			timeout = s.Config.Connection.Timeout
		}
		if timeout > 0 && now.Sub(c.LastReceive()) > timeout {
			s.Logger.WithFields(c.LogFields()).Infof("[%s] connection timed out", s.Name)
			c.Disconnect("Connection timed out")
			continue
		}

		if heartbeat > 0 && now.Sub(c.LastSend()) > heartbeat && !c.SendInProgress() {
			if high, _, _ := c.QueueLen(); high == 0 {
				c.Send(&packets.Heartbeat{}, client.HighPriority)
			}
		}
	}
}

// Reload applies the settings that can change while the server runs.
func (s *Server) Reload(r core.Reloadable) {
	s.policy.SetLimits(r.MaxPlayers, r.WhitelistEnabled)

	s.settingsMu.Lock()
	changed := s.motd != r.MOTD
	s.motd = r.MOTD
	s.settingsMu.Unlock()

	if changed {
		s.directory.Broadcast(s.serverSettings(), client.LowPriority, nil)
	}
	s.Logger.Infof("[%s] reloaded settings (max players %d, whitelist %v)", s.Name, r.MaxPlayers, r.WhitelistEnabled)
}

// Shutdown asks every client to disconnect.
func (s *Server) Shutdown(reason string) {
	s.directory.DisconnectAll(reason)
}
