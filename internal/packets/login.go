package packets

import (
	"fmt"

	"github.com/dcrodman/warpserver/internal/core/bytes"
)

// HandshakeCode is the result sent in a HandshakeReply.
type HandshakeCode int32

const (
	HandshakeSuccess          HandshakeCode = 0
	HandshakeProtocolMismatch HandshakeCode = 1
	HandshakeAlreadyConnected HandshakeCode = 2
	HandshakeReservedName     HandshakeCode = 3
	HandshakeInvalidToken     HandshakeCode = 4
	HandshakeBanned           HandshakeCode = 5
	HandshakeServerFull       HandshakeCode = 6
	HandshakeNotWhitelisted   HandshakeCode = 7
	HandshakeMalformed        HandshakeCode = 99
)

// HandshakeRequest is the first message an unauthenticated client sends.
type HandshakeRequest struct {
	ProtocolVersion int32
	PlayerName      string
	PlayerToken     string
}

func (*HandshakeRequest) Type() Type { return HandshakeRequestType }

func (p *HandshakeRequest) Marshal() []byte {
	return bytes.NewWriter().
		WriteInt32(p.ProtocolVersion).
		WriteString(p.PlayerName).
		WriteString(p.PlayerToken).
		Bytes()
}

func (p *HandshakeRequest) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.ProtocolVersion = r.ReadInt32()
	p.PlayerName = r.ReadString()
	p.PlayerToken = r.ReadString()
	if r.Err() != nil {
		return fmt.Errorf("decoding handshake request: %w", r.Err())
	}
	return nil
}

// HandshakeReply is the server's answer to a HandshakeRequest. The mod control
// trailer is only written when HasModControl is set, which the server only does
// on success with mod control enabled.
type HandshakeReply struct {
	Code            HandshakeCode
	Reason          string
	ProtocolVersion int32
	ServerVersion   string

	HasModControl  bool
	ModControlMode int32
	ModControlText string
}

func (*HandshakeReply) Type() Type { return HandshakeReplyType }

func (p *HandshakeReply) Marshal() []byte {
	w := bytes.NewWriter().
		WriteInt32(int32(p.Code)).
		WriteString(p.Reason).
		WriteInt32(p.ProtocolVersion).
		WriteString(p.ServerVersion)
	if p.HasModControl {
		w.WriteInt32(p.ModControlMode).WriteString(p.ModControlText)
	}
	return w.Bytes()
}

func (p *HandshakeReply) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.Code = HandshakeCode(r.ReadInt32())
	p.Reason = r.ReadString()
	p.ProtocolVersion = r.ReadInt32()
	p.ServerVersion = r.ReadString()
	if r.Err() == nil && r.Remaining() > 0 {
		p.HasModControl = true
		p.ModControlMode = r.ReadInt32()
		p.ModControlText = r.ReadString()
	}
	if r.Err() != nil {
		return fmt.Errorf("decoding handshake reply: %w", r.Err())
	}
	return nil
}

// ConnectionEnd tells the other side the connection is about to close.
type ConnectionEnd struct {
	Reason string
}

func (*ConnectionEnd) Type() Type { return ConnectionEndType }

func (p *ConnectionEnd) Marshal() []byte {
	return bytes.NewWriter().WriteString(p.Reason).Bytes()
}

// Unmarshal tolerates an empty payload since clients closing normally are not
// required to give a reason.
func (p *ConnectionEnd) Unmarshal(data []byte) error {
	if len(data) == 0 {
		p.Reason = ""
		return nil
	}
	r := bytes.NewReader(data)
	p.Reason = r.ReadString()
	if r.Err() != nil {
		return fmt.Errorf("decoding connection end: %w", r.Err())
	}
	return nil
}

// Heartbeat has no payload.
type Heartbeat struct{}

func (*Heartbeat) Type() Type      { return HeartbeatType }
func (*Heartbeat) Marshal() []byte { return nil }

// ServerSettings is the first message of the initial state burst.
type ServerSettings struct {
	ServerName        string
	MOTD              string
	WarpMode          int32
	GameMode          int32
	MaxPlayers        int32
	HeartbeatInterval int32
	ConnectionTimeout int32
}

func (*ServerSettings) Type() Type { return ServerSettingsType }

func (p *ServerSettings) Marshal() []byte {
	return bytes.NewWriter().
		WriteString(p.ServerName).
		WriteString(p.MOTD).
		WriteInt32(p.WarpMode).
		WriteInt32(p.GameMode).
		WriteInt32(p.MaxPlayers).
		WriteInt32(p.HeartbeatInterval).
		WriteInt32(p.ConnectionTimeout).
		Bytes()
}

func (p *ServerSettings) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	p.ServerName = r.ReadString()
	p.MOTD = r.ReadString()
	p.WarpMode = r.ReadInt32()
	p.GameMode = r.ReadInt32()
	p.MaxPlayers = r.ReadInt32()
	p.HeartbeatInterval = r.ReadInt32()
	p.ConnectionTimeout = r.ReadInt32()
	if r.Err() != nil {
		return fmt.Errorf("decoding server settings: %w", r.Err())
	}
	return nil
}
