package packets

import (
	"fmt"

	"github.com/dcrodman/warpserver/internal/core/bytes"
)

// PlayerJoin announces a newly authenticated player.
type PlayerJoin struct {
	PlayerName string
}

func (*PlayerJoin) Type() Type { return PlayerJoinType }

func (p *PlayerJoin) Marshal() []byte {
	return bytes.NewWriter().WriteString(p.PlayerName).Bytes()
}

func (p *PlayerJoin) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.PlayerName = r.ReadString()
	if r.Err() != nil {
		return fmt.Errorf("decoding player join: %w", r.Err())
	}
	return nil
}

// PlayerDisconnect announces that a player has left.
type PlayerDisconnect struct {
	PlayerName string
}

func (*PlayerDisconnect) Type() Type { return PlayerDisconnectType }

func (p *PlayerDisconnect) Marshal() []byte {
	return bytes.NewWriter().WriteString(p.PlayerName).Bytes()
}

func (p *PlayerDisconnect) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.PlayerName = r.ReadString()
	if r.Err() != nil {
		return fmt.Errorf("decoding player disconnect: %w", r.Err())
	}
	return nil
}

// PlayerStatus is opaque to the server apart from the player name.
type PlayerStatus struct {
	PlayerName string
	VesselText string
	StatusText string
}

func (*PlayerStatus) Type() Type { return PlayerStatusType }

func (p *PlayerStatus) Marshal() []byte {
	return bytes.NewWriter().
		WriteString(p.PlayerName).
		WriteString(p.VesselText).
		WriteString(p.StatusText).
		Bytes()
}

func (p *PlayerStatus) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.PlayerName = r.ReadString()
	p.VesselText = r.ReadString()
	p.StatusText = r.ReadString()
	if r.Err() != nil {
		return fmt.Errorf("decoding player status: %w", r.Err())
	}
	return nil
}

// Chat is a message to every player on a channel. An empty channel is global.
type Chat struct {
	FromPlayer string
	Channel    string
	Message    string
}

func (*Chat) Type() Type { return ChatType }

func (p *Chat) Marshal() []byte {
	return bytes.NewWriter().
		WriteString(p.FromPlayer).
		WriteString(p.Channel).
		WriteString(p.Message).
		Bytes()
}

func (p *Chat) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.FromPlayer = r.ReadString()
	p.Channel = r.ReadString()
	p.Message = r.ReadString()
	if r.Err() != nil {
		return fmt.Errorf("decoding chat: %w", r.Err())
	}
	return nil
}

// VesselUpdate is relayed to the other players in the sender's subspace. The
// blob is never interpreted by the server.
type VesselUpdate struct {
	SubspaceID int32
	VesselID   string
	Data       []byte
}

func (*VesselUpdate) Type() Type { return VesselUpdateType }

func (p *VesselUpdate) Marshal() []byte {
	return bytes.NewWriter().
		WriteInt32(p.SubspaceID).
		WriteString(p.VesselID).
		WriteBytes(p.Data).
		Bytes()
}

func (p *VesselUpdate) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.SubspaceID = r.ReadInt32()
	p.VesselID = r.ReadString()
	p.Data = r.ReadBytes()
	if r.Err() != nil {
		return fmt.Errorf("decoding vessel update: %w", r.Err())
	}
	return nil
}
