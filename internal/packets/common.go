// Package packets defines every message that can be exchanged between a client
// and the server. The set of types is closed: adding one requires bumping
// ProtocolVersion, which the handshake compares for exact equality.
package packets

import (
	"fmt"

	"github.com/dcrodman/warpserver/internal/core/frame"
)

// ProtocolVersion is the version of this message enumeration.
const ProtocolVersion int32 = 1

// Type identifies the payload carried by a frame.
type Type uint32

const (
	HeartbeatType Type = iota
	HandshakeRequestType
	HandshakeReplyType
	ConnectionEndType
	SplitStartType
	SplitChunkType
	ServerSettingsType
	PlayerJoinType
	PlayerDisconnectType
	PlayerStatusType
	ChatType
	LockAcquireType
	LockReleaseType
	LockListType
	SubspaceCreateType
	SubspaceChangeType
	SubspaceReportRateType
	SubspaceListType
	SetSubspaceType
	SubspaceRelockType
	SyncTimeRequestType
	SyncTimeReplyType
	VesselUpdateType

	numTypes
)

// The codec owns the split message codes; make sure the enumeration agrees.
var (
	_ = [1]struct{}{}[uint32(SplitStartType)-frame.TypeSplitStart]
	_ = [1]struct{}{}[uint32(SplitChunkType)-frame.TypeSplitChunk]
)

var typeNames = [numTypes]string{
	HeartbeatType:          "HEARTBEAT",
	HandshakeRequestType:   "HANDSHAKE_REQUEST",
	HandshakeReplyType:     "HANDSHAKE_REPLY",
	ConnectionEndType:      "CONNECTION_END",
	SplitStartType:         "SPLIT_START",
	SplitChunkType:         "SPLIT_CHUNK",
	ServerSettingsType:     "SERVER_SETTINGS",
	PlayerJoinType:         "PLAYER_JOIN",
	PlayerDisconnectType:   "PLAYER_DISCONNECT",
	PlayerStatusType:       "PLAYER_STATUS",
	ChatType:               "CHAT",
	LockAcquireType:        "LOCK_ACQUIRE",
	LockReleaseType:        "LOCK_RELEASE",
	LockListType:           "LOCK_LIST",
	SubspaceCreateType:     "SUBSPACE_CREATE",
	SubspaceChangeType:     "SUBSPACE_CHANGE",
	SubspaceReportRateType: "SUBSPACE_REPORT_RATE",
	SubspaceListType:       "SUBSPACE_LIST",
	SetSubspaceType:        "SET_SUBSPACE",
	SubspaceRelockType:     "SUBSPACE_RELOCK",
	SyncTimeRequestType:    "SYNC_TIME_REQUEST",
	SyncTimeReplyType:      "SYNC_TIME_REPLY",
	VesselUpdateType:       "VESSEL_UPDATE",
}

// Valid reports whether t is part of the enumeration.
func (t Type) Valid() bool {
	return t < numTypes
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
	}
	return typeNames[t]
}

// AllowedBeforeAuth reports whether a client may send t before its handshake
// has succeeded.
func (t Type) AllowedBeforeAuth() bool {
	switch t {
	case HeartbeatType, HandshakeRequestType, ConnectionEndType:
		return true
	}
	return false
}

// SentByClient reports whether t is a message clients are allowed to send.
func (t Type) SentByClient() bool {
	switch t {
	case HeartbeatType, HandshakeRequestType, ConnectionEndType,
		SplitStartType, SplitChunkType,
		PlayerStatusType, ChatType,
		LockAcquireType, LockReleaseType,
		SubspaceCreateType, SubspaceChangeType, SubspaceReportRateType,
		SyncTimeRequestType, VesselUpdateType:
		return true
	}
	return false
}

// Message is implemented by every payload type the server sends.
type Message interface {
	Type() Type
	Marshal() []byte
}

// Frame wraps a message in a frame ready to be queued.
func Frame(m Message) frame.Frame {
	return frame.Frame{Type: uint32(m.Type()), Payload: m.Marshal()}
}
