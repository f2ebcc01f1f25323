package game

import (
	"errors"

	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/packets"
	"github.com/dcrodman/warpserver/internal/subspace"
)

func toEntry(s subspace.Subspace) packets.SubspaceEntry {
	return packets.SubspaceEntry{
		ID:             s.ID,
		ReferenceTick:  s.ReferenceTick,
		SimulationTime: s.SimulationTime,
		Rate:           s.Rate,
	}
}

func (s *Server) subspaceList() *packets.SubspaceList {
	subspaces := s.registry.List()
	list := &packets.SubspaceList{Subspaces: make([]packets.SubspaceEntry, len(subspaces))}
	for i, sub := range subspaces {
		list.Subspaces[i] = toEntry(sub)
	}
	return list
}

func (s *Server) handleSubspaceCreate(c *client.Client, payload []byte) error {
	var req packets.SubspaceCreate
	if err := decode(packets.SubspaceCreateType, payload, &req); err != nil {
		return err
	}

	created, err := s.registry.Create(subspace.Subspace{
		ID:             req.Subspace.ID,
		ReferenceTick:  req.Subspace.ReferenceTick,
		SimulationTime: req.Subspace.SimulationTime,
		Rate:           req.Subspace.Rate,
	}, c.Name())
	switch {
	case errors.Is(err, subspace.ErrSubspaceExists):
		return core.Violationf("subspace %d already exists", req.Subspace.ID)
	case errors.Is(err, subspace.ErrInvalidTime):
		return core.Violationf("subspace %d has invalid simulation time %v", req.Subspace.ID, req.Subspace.SimulationTime)
	case err != nil:
		return err
	}
	c.SetSubspace(created.ID)

	s.Logger.WithFields(c.LogFields()).Debugf("[%s] created subspace %d", s.Name, created.ID)
	s.directory.Broadcast(s.subspaceList(), client.HighPriority, c)
	c.Send(&packets.SetSubspace{SubspaceID: created.ID}, client.HighPriority)
	return nil
}

func (s *Server) handleSubspaceChange(c *client.Client, payload []byte) error {
	var req packets.SubspaceChange
	if err := decode(packets.SubspaceChangeType, payload, &req); err != nil {
		return err
	}
	if err := s.registry.Join(c.Name(), req.SubspaceID); errors.Is(err, subspace.ErrNoSuchSubspace) {
		return core.Violationf("subspace %d does not exist", req.SubspaceID)
	} else if err != nil {
		return err
	}
	c.SetSubspace(req.SubspaceID)
	c.Send(&packets.SetSubspace{SubspaceID: req.SubspaceID}, client.HighPriority)
	return nil
}

func (s *Server) handleSubspaceReportRate(c *client.Client, payload []byte) error {
	var req packets.SubspaceReportRate
	if err := decode(packets.SubspaceReportRateType, payload, &req); err != nil {
		return err
	}
	c.SetRate(subspace.ClampRate(req.Rate))

	id, ok := s.registry.SubspaceOf(c.Name())
	if !ok {
		return core.Violationf("rate reported outside of any subspace")
	}
	updated, relocked, err := s.registry.ReportRate(id, c.Name(), req.Rate)
	if err != nil {
		return err
	}
	if relocked {
		s.Logger.Debugf("[%s] relocked subspace %d at rate %.2f", s.Name, updated.ID, updated.Rate)
		s.directory.Broadcast(&packets.SubspaceRelock{Subspace: toEntry(updated)}, client.HighPriority, nil)
	}
	return nil
}
