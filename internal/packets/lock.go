package packets

import (
	"fmt"

	"github.com/dcrodman/warpserver/internal/core/bytes"
)

// LockAcquireRequest is sent by a client that wants to own a named lock.
type LockAcquireRequest struct {
	PlayerName string
	LockName   string
	Force      bool
}

func (*LockAcquireRequest) Type() Type { return LockAcquireType }

func (p *LockAcquireRequest) Marshal() []byte {
	return bytes.NewWriter().
		WriteString(p.PlayerName).
		WriteString(p.LockName).
		WriteBool(p.Force).
		Bytes()
}

func (p *LockAcquireRequest) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.PlayerName = r.ReadString()
	p.LockName = r.ReadString()
	p.Force = r.ReadBool()
	if r.Err() != nil {
		return fmt.Errorf("decoding lock acquire: %w", r.Err())
	}
	return nil
}

// LockReleaseRequest is sent by a client giving up a lock it owns.
type LockReleaseRequest struct {
	PlayerName string
	LockName   string
}

func (*LockReleaseRequest) Type() Type { return LockReleaseType }

func (p *LockReleaseRequest) Marshal() []byte {
	return bytes.NewWriter().
		WriteString(p.PlayerName).
		WriteString(p.LockName).
		Bytes()
}

func (p *LockReleaseRequest) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.PlayerName = r.ReadString()
	p.LockName = r.ReadString()
	if r.Err() != nil {
		return fmt.Errorf("decoding lock release: %w", r.Err())
	}
	return nil
}

// LockResult is sent by the server for both acquires and releases. Successful
// results are broadcast to every session, failures only go to the requester.
type LockResult struct {
	Kind       Type
	PlayerName string
	LockName   string
	Result     bool
}

func (p *LockResult) Type() Type { return p.Kind }

func (p *LockResult) Marshal() []byte {
	return bytes.NewWriter().
		WriteString(p.PlayerName).
		WriteString(p.LockName).
		WriteBool(p.Result).
		Bytes()
}

func (p *LockResult) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.PlayerName = r.ReadString()
	p.LockName = r.ReadString()
	p.Result = r.ReadBool()
	if r.Err() != nil {
		return fmt.Errorf("decoding lock result: %w", r.Err())
	}
	return nil
}

// LockEntry is one row of a LockList.
type LockEntry struct {
	LockName string
	Owner    string
}

// LockList carries every held lock as part of the initial state burst.
type LockList struct {
	Locks []LockEntry
}

func (*LockList) Type() Type { return LockListType }

func (p *LockList) Marshal() []byte {
	w := bytes.NewWriter().WriteInt32(int32(len(p.Locks)))
	for _, l := range p.Locks {
		w.WriteString(l.LockName).WriteString(l.Owner)
	}
	return w.Bytes()
}

func (p *LockList) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	n := r.ReadInt32()
	if n < 0 {
		return fmt.Errorf("decoding lock list: negative count %d", n)
	}
	p.Locks = nil
	for i := int32(0); i < n && r.Err() == nil; i++ {
		p.Locks = append(p.Locks, LockEntry{LockName: r.ReadString(), Owner: r.ReadString()})
	}
	if r.Err() != nil {
		return fmt.Errorf("decoding lock list: %w", r.Err())
	}
	return nil
}
