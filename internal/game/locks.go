package game

import (
	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/packets"
)

func (s *Server) handleLockAcquire(c *client.Client, payload []byte) error {
	var req packets.LockAcquireRequest
	if err := decode(packets.LockAcquireType, payload, &req); err != nil {
		return err
	}
	if req.PlayerName != c.Name() {
		return core.Violationf("lock acquire sent for another player (%s)", req.PlayerName)
	}

	result := &packets.LockResult{
		Kind:       packets.LockAcquireType,
		PlayerName: req.PlayerName,
		LockName:   req.LockName,
	}
	if !s.locks.Acquire(req.LockName, req.PlayerName, req.Force) {
		c.Send(result, client.HighPriority)
		return nil
	}
	result.Result = true
	s.directory.Broadcast(result, client.HighPriority, nil)
	return nil
}

func (s *Server) handleLockRelease(c *client.Client, payload []byte) error {
	var req packets.LockReleaseRequest
	if err := decode(packets.LockReleaseType, payload, &req); err != nil {
		return err
	}
	if req.PlayerName != c.Name() {
		return core.Violationf("lock release sent for another player (%s)", req.PlayerName)
	}
	if !s.locks.Release(req.LockName, req.PlayerName) {
		return core.Violationf("released lock %q that is not held", req.LockName)
	}
	s.broadcastLockRelease(req.PlayerName, req.LockName)
	return nil
}

func (s *Server) broadcastLockRelease(player, lockName string) {
	s.directory.Broadcast(&packets.LockResult{
		Kind:       packets.LockReleaseType,
		PlayerName: player,
		LockName:   lockName,
		Result:     true,
	}, client.HighPriority, nil)
}

func (s *Server) lockList() *packets.LockList {
	entries := s.locks.List()
	list := &packets.LockList{Locks: make([]packets.LockEntry, len(entries))}
	for i, e := range entries {
		list.Locks[i] = packets.LockEntry{LockName: e.Name, Owner: e.Owner}
	}
	return list
}
