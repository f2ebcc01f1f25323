package packets

import (
	"fmt"

	"github.com/dcrodman/warpserver/internal/core/bytes"
)

// SubspaceEntry is the wire form of a subspace clock.
type SubspaceEntry struct {
	ID             int32
	ReferenceTick  int64
	SimulationTime float64
	Rate           float32
}

func writeSubspace(w *bytes.Writer, s SubspaceEntry) {
	w.WriteInt32(s.ID).
		WriteInt64(s.ReferenceTick).
		WriteFloat64(s.SimulationTime).
		WriteFloat32(s.Rate)
}

func readSubspace(r *bytes.Reader) SubspaceEntry {
	return SubspaceEntry{
		ID:             r.ReadInt32(),
		ReferenceTick:  r.ReadInt64(),
		SimulationTime: r.ReadFloat64(),
		Rate:           r.ReadFloat32(),
	}
}

// SubspaceCreate is sent by a client that wants a new subspace anchored at its
// current clock.
type SubspaceCreate struct {
	Subspace SubspaceEntry
}

func (*SubspaceCreate) Type() Type { return SubspaceCreateType }

func (p *SubspaceCreate) Marshal() []byte {
	w := bytes.NewWriter()
	writeSubspace(w, p.Subspace)
	return w.Bytes()
}

func (p *SubspaceCreate) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.Subspace = readSubspace(r)
	if r.Err() != nil {
		return fmt.Errorf("decoding subspace create: %w", r.Err())
	}
	return nil
}

// SubspaceChange asks the server to move the client to an existing subspace.
type SubspaceChange struct {
	SubspaceID int32
}

func (*SubspaceChange) Type() Type { return SubspaceChangeType }

func (p *SubspaceChange) Marshal() []byte {
	return bytes.NewWriter().WriteInt32(p.SubspaceID).Bytes()
}

func (p *SubspaceChange) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.SubspaceID = r.ReadInt32()
	if r.Err() != nil {
		return fmt.Errorf("decoding subspace change: %w", r.Err())
	}
	return nil
}

// SubspaceReportRate carries the playback rate a client observes locally.
type SubspaceReportRate struct {
	Rate float32
}

func (*SubspaceReportRate) Type() Type { return SubspaceReportRateType }

func (p *SubspaceReportRate) Marshal() []byte {
	return bytes.NewWriter().WriteFloat32(p.Rate).Bytes()
}

func (p *SubspaceReportRate) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.Rate = r.ReadFloat32()
	if r.Err() != nil {
		return fmt.Errorf("decoding subspace rate report: %w", r.Err())
	}
	return nil
}

// SubspaceList is part of the initial state burst.
type SubspaceList struct {
	Subspaces []SubspaceEntry
}

func (*SubspaceList) Type() Type { return SubspaceListType }

func (p *SubspaceList) Marshal() []byte {
	w := bytes.NewWriter().WriteInt32(int32(len(p.Subspaces)))
	for _, s := range p.Subspaces {
		writeSubspace(w, s)
	}
	return w.Bytes()
}

func (p *SubspaceList) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	n := r.ReadInt32()
	if n < 0 {
		return fmt.Errorf("decoding subspace list: negative count %d", n)
	}
	p.Subspaces = nil
	for i := int32(0); i < n && r.Err() == nil; i++ {
		p.Subspaces = append(p.Subspaces, readSubspace(r))
	}
	if r.Err() != nil {
		return fmt.Errorf("decoding subspace list: %w", r.Err())
	}
	return nil
}

// SetSubspace assigns the receiving client to a subspace.
type SetSubspace struct {
	SubspaceID int32
}

func (*SetSubspace) Type() Type { return SetSubspaceType }

func (p *SetSubspace) Marshal() []byte {
	return bytes.NewWriter().WriteInt32(p.SubspaceID).Bytes()
}

func (p *SetSubspace) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.SubspaceID = r.ReadInt32()
	if r.Err() != nil {
		return fmt.Errorf("decoding set subspace: %w", r.Err())
	}
	return nil
}

// SubspaceRelock is broadcast to every session whenever a subspace is created
// or its anchor and rate change.
type SubspaceRelock struct {
	Subspace SubspaceEntry
}

func (*SubspaceRelock) Type() Type { return SubspaceRelockType }

func (p *SubspaceRelock) Marshal() []byte {
	w := bytes.NewWriter()
	writeSubspace(w, p.Subspace)
	return w.Bytes()
}

func (p *SubspaceRelock) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.Subspace = readSubspace(r)
	if r.Err() != nil {
		return fmt.Errorf("decoding subspace relock: %w", r.Err())
	}
	return nil
}

// SyncTimeRequest lets a client estimate its offset from the server clock.
type SyncTimeRequest struct {
	ClientSendTick int64
}

func (*SyncTimeRequest) Type() Type { return SyncTimeRequestType }

func (p *SyncTimeRequest) Marshal() []byte {
	return bytes.NewWriter().WriteInt64(p.ClientSendTick).Bytes()
}

func (p *SyncTimeRequest) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.ClientSendTick = r.ReadInt64()
	if r.Err() != nil {
		return fmt.Errorf("decoding sync time request: %w", r.Err())
	}
	return nil
}

// SyncTimeReply echoes the client's tick along with the server's receive and
// send ticks.
type SyncTimeReply struct {
	ClientSendTick    int64
	ServerReceiveTick int64
	ServerSendTick    int64
}

func (*SyncTimeReply) Type() Type { return SyncTimeReplyType }

func (p *SyncTimeReply) Marshal() []byte {
	return bytes.NewWriter().
		WriteInt64(p.ClientSendTick).
		WriteInt64(p.ServerReceiveTick).
		WriteInt64(p.ServerSendTick).
		Bytes()
}

func (p *SyncTimeReply) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.ClientSendTick = r.ReadInt64()
	p.ServerReceiveTick = r.ReadInt64()
	p.ServerSendTick = r.ReadInt64()
	if r.Err() != nil {
		return fmt.Errorf("decoding sync time reply: %w", r.Err())
	}
	return nil
}
