package game

import (
	"fmt"

	"github.com/dcrodman/warpserver/internal/auth"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/lock"
	"github.com/dcrodman/warpserver/internal/packets"
	"github.com/dcrodman/warpserver/internal/subspace"
)

// ServerChatName is the sender of messages broadcast by the operator.
const ServerChatName = "Server"

// PlayerInfo describes a connected player.
type PlayerInfo struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Subspace int32   `json:"subspace"`
	Rate     float32 `json:"rate"`
}

// Players returns every authenticated player, ordered by name.
func (s *Server) Players() []PlayerInfo {
	clients := s.directory.Authenticated()
	players := make([]PlayerInfo, len(clients))
	for i, c := range clients {
		players[i] = PlayerInfo{
			Name:     c.Name(),
			Address:  c.IPAddr(),
			Subspace: c.Subspace(),
			Rate:     c.Rate(),
		}
	}
	return players
}

func (s *Server) PlayerCount() int {
	return s.directory.PlayerCount()
}

func (s *Server) ConnectionCount() int {
	return s.directory.Count()
}

func (s *Server) MaxPlayers() int {
	return s.policy.MaxPlayers()
}

// Locks returns every held lock.
func (s *Server) Locks() []lock.Entry {
	return s.locks.List()
}

// LockOwner returns the player holding the named lock.
func (s *Server) LockOwner(name string) (string, bool) {
	return s.locks.Owner(name)
}

// Subspaces returns every subspace.
func (s *Server) Subspaces() []subspace.Subspace {
	return s.registry.List()
}

// Subspace returns the subspace with the given id and the players in it.
func (s *Server) Subspace(id int32) (subspace.Subspace, []string, bool) {
	sub, ok := s.registry.Get(id)
	if !ok {
		return subspace.Subspace{}, nil, false
	}
	return sub, s.registry.Members(id), true
}

// Now returns the current server tick.
func (s *Server) Now() int64 {
	return s.registry.Now()
}

// Pardon lifts every ban on name.
func (s *Server) Pardon(name string) (int64, error) {
	return s.policy.Pardon(name)
}

func (s *Server) AddToWhitelist(name string) error {
	return s.policy.AddToWhitelist(name)
}

func (s *Server) RemoveFromWhitelist(name string) (bool, error) {
	return s.policy.RemoveFromWhitelist(name)
}

func (s *Server) Whitelist() ([]string, error) {
	return s.policy.Whitelist()
}

// Kick disconnects the named player. It reports whether the player was connected.
func (s *Server) Kick(name, reason string) bool {
	c, ok := s.directory.FindByName(name)
	if !ok {
		return false
	}
	if reason == "" {
		reason = "You were kicked from the server"
	}
	s.Logger.WithFields(c.LogFields()).Infof("[%s] kicking %s: %s", s.Name, name, reason)
	return c.Disconnect(reason)
}

// Ban bans the named player and kicks them if they are connected.
func (s *Server) Ban(name, reason string) error {
	if err := s.policy.Ban(name, reason); err != nil {
		return err
	}
	if c, ok := s.directory.FindByName(name); ok {
		if err := s.policy.BanAddress(c.IPAddr(), reason); err != nil {
			return fmt.Errorf("banning address of %s: %w", name, err)
		}
		msg := auth.ErrBanned.Reason
		if reason != "" {
			msg += ": " + reason
		}
		c.Disconnect(msg)
	}
	return nil
}

// Say broadcasts a chat message from the server to every player.
func (s *Server) Say(message string) {
	s.directory.Broadcast(&packets.Chat{
		FromPlayer: ServerChatName,
		Message:    message,
	}, client.LowPriority, nil)
}
