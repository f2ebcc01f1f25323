package game

import (
	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/packets"
)

func (s *Server) handleChat(c *client.Client, payload []byte) error {
	var msg packets.Chat
	if err := decode(packets.ChatType, payload, &msg); err != nil {
		return err
	}
	if msg.FromPlayer != c.Name() {
		return core.Violationf("chat sent as another player (%s)", msg.FromPlayer)
	}
	s.directory.Broadcast(&msg, client.LowPriority, nil)
	return nil
}

func (s *Server) handlePlayerStatus(c *client.Client, payload []byte) error {
	var status packets.PlayerStatus
	if err := decode(packets.PlayerStatusType, payload, &status); err != nil {
		return err
	}
	if status.PlayerName != c.Name() {
		return core.Violationf("status sent for another player (%s)", status.PlayerName)
	}
	s.directory.Broadcast(&status, client.LowPriority, c)
	return nil
}

// Vessel updates are opaque to the server. They only go to the players that
// share the sender's subspace.
func (s *Server) handleVesselUpdate(c *client.Client, payload []byte) error {
	var update packets.VesselUpdate
	if err := decode(packets.VesselUpdateType, payload, &update); err != nil {
		return err
	}
	s.directory.BroadcastToSubspace(c.Subspace(), &update, client.LowPriority, c)
	return nil
}

func (s *Server) handleSyncTime(c *client.Client, payload []byte) error {
	received := s.registry.Now()

	var req packets.SyncTimeRequest
	if err := decode(packets.SyncTimeRequestType, payload, &req); err != nil {
		return err
	}
	c.Send(&packets.SyncTimeReply{
		ClientSendTick:    req.ClientSendTick,
		ServerReceiveTick: received,
		ServerSendTick:    s.registry.Now(),
	}, client.HighPriority)
	return nil
}
