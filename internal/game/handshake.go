package game

import (
	"context"
	"errors"
	"time"

	"github.com/dcrodman/warpserver/internal/auth"
	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/packets"
)

// How often a pending handshake checks whether the player it collides with is gone.
const evictionPollInterval = 10 * time.Millisecond

func (s *Server) handleHandshake(ctx context.Context, c *client.Client, payload []byte) error {
	if !c.BeginHandshake() {
		return core.Violationf("duplicate handshake")
	}

	var req packets.HandshakeRequest
	if err := req.Unmarshal(payload); err != nil {
		s.reject(c, auth.ErrMalformed)
		return nil
	}

	log := s.Logger.WithFields(c.LogFields()).WithField("name", req.PlayerName)
	if err := s.authenticate(ctx, c, &req); err != nil {
		if r, ok := auth.AsRejection(err); ok {
			log.Infof("[%s] rejected handshake: %s", s.Name, r.Reason)
			s.reject(c, r)
			return nil
		}
		return err
	}

	log.Infof("[%s] %s joined the server", s.Name, req.PlayerName)
	s.welcome(c)
	return nil
}

// authenticate runs the handshake checks in order; the first failure wins.
func (s *Server) authenticate(ctx context.Context, c *client.Client, req *packets.HandshakeRequest) error {
	if req.ProtocolVersion != packets.ProtocolVersion {
		return auth.ErrProtocolMismatch
	}
	if err := s.resolveDuplicate(ctx, c, req); err != nil {
		return err
	}
	if err := s.policy.CheckName(req.PlayerName); err != nil {
		return err
	}
	if err := s.policy.CheckToken(req.PlayerName, req.PlayerToken); err != nil {
		return err
	}
	if err := s.policy.CheckBanned(req.PlayerName, c.IPAddr(), req.PlayerToken); err != nil {
		return err
	}

	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	if err := s.policy.CheckCapacity(s.directory.PlayerCount()); err != nil {
		return err
	}
	if err := s.policy.CheckWhitelist(req.PlayerName); err != nil {
		return err
	}
	if !s.directory.Claim(c, req.PlayerName) {
		return auth.ErrAlreadyConnected
	}
	if !c.Authenticate(req.PlayerName, req.PlayerToken) {
		s.directory.Release(c, req.PlayerName)
		return errors.New("client disconnected during handshake")
	}
	return nil
}

// resolveDuplicate handles a join under a name that is already connected. The
// connected player is sent a heartbeat and given the grace period to prove it
// is still there. If it is, a client presenting the same token replaces it; any
// other client falls through to the token check, which rejects it.
func (s *Server) resolveDuplicate(ctx context.Context, c *client.Client, req *packets.HandshakeRequest) error {
	existing, ok := s.directory.FindByName(req.PlayerName)
	if !ok || existing == c {
		return nil
	}
	grace := s.Config.Connection.HandshakeGrace

	existing.Send(&packets.Heartbeat{}, client.HighPriority)
	if s.waitForRemoval(ctx, req.PlayerName, existing, grace) {
		return nil
	}
	if existing.Token() != req.PlayerToken {
		return nil
	}

	s.Logger.WithFields(existing.LogFields()).Infof("[%s] replacing connection of %s", s.Name, req.PlayerName)
	existing.Disconnect("Connected from another client")
	if s.waitForRemoval(ctx, req.PlayerName, existing, grace) {
		return nil
	}
	return auth.ErrAlreadyConnected
}

// waitForRemoval reports whether existing released name within timeout.
func (s *Server) waitForRemoval(ctx context.Context, name string, existing *client.Client, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(evictionPollInterval)
	defer poll.Stop()

	for {
		if holder, ok := s.directory.FindByName(name); !ok || holder != existing {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			holder, ok := s.directory.FindByName(name)
			return !ok || holder != existing
		case <-poll.C:
		}
	}
}

// reject answers a failed handshake and closes the connection.
func (s *Server) reject(c *client.Client, r *auth.Rejection) {
	s.Metrics.Handshake(int32(r.Code))
	c.Send(&packets.HandshakeReply{
		Code:            r.Code,
		Reason:          r.Reason,
		ProtocolVersion: packets.ProtocolVersion,
		ServerVersion:   core.Version,
	}, client.HighPriority)
	c.Disconnect(r.Reason)
}

// welcome completes a successful handshake: the reply, the join announcement,
// and the initial state every new player needs.
func (s *Server) welcome(c *client.Client) {
	name := c.Name()

	reply := &packets.HandshakeReply{
		Code:            packets.HandshakeSuccess,
		ProtocolVersion: packets.ProtocolVersion,
		ServerVersion:   core.Version,
	}
	if mode := s.Config.ModControl.Mode; mode != 0 {
		reply.HasModControl = true
		reply.ModControlMode = int32(mode)
		reply.ModControlText = s.modControlText
	}
	c.Send(reply, client.HighPriority)
	s.Metrics.Handshake(int32(packets.HandshakeSuccess))
	s.policy.Seen(name)

	s.directory.Broadcast(&packets.PlayerJoin{PlayerName: name}, client.HighPriority, c)

	c.Send(s.serverSettings(), client.HighPriority)
	for _, other := range s.directory.PlayerNames() {
		if other != name {
			c.Send(&packets.PlayerJoin{PlayerName: other}, client.LowPriority)
		}
	}
	c.Send(s.lockList(), client.LowPriority)
	c.Send(s.subspaceList(), client.LowPriority)

	latest := s.registry.Latest()
	if err := s.registry.Join(name, latest); err != nil {
		s.Logger.Errorf("[%s] failed to place %s in subspace %d: %v", s.Name, name, latest, err)
	}
	c.SetSubspace(latest)
	c.Send(&packets.SetSubspace{SubspaceID: latest}, client.LowPriority)

	c.MarkRunning()
}

func (s *Server) serverSettings() *packets.ServerSettings {
	s.settingsMu.RLock()
	motd := s.motd
	s.settingsMu.RUnlock()

	return &packets.ServerSettings{
		ServerName:        s.Config.ServerName,
		MOTD:              motd,
		WarpMode:          int32(s.Config.WarpMode),
		GameMode:          int32(s.Config.GameMode),
		MaxPlayers:        int32(s.policy.MaxPlayers()),
		HeartbeatInterval: int32(s.Config.Connection.HeartbeatInterval / time.Second),
		ConnectionTimeout: int32(s.Config.Connection.Timeout / time.Second),
	}
}
