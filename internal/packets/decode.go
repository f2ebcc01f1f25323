package packets

import (
	"fmt"

	"github.com/dcrodman/warpserver/internal/core/frame"
)

type unmarshaler interface {
	Unmarshal(data []byte) error
}

// Decode parses a non-split frame into its message struct. fromClient picks
// the layout for the lock messages, whose request and result payloads differ.
func Decode(f frame.Frame, fromClient bool) (interface{}, error) {
	t := Type(f.Type)

	var msg unmarshaler
	switch t {
	case HeartbeatType:
		return &Heartbeat{}, nil
	case HandshakeRequestType:
		msg = &HandshakeRequest{}
	case HandshakeReplyType:
		msg = &HandshakeReply{}
	case ConnectionEndType:
		msg = &ConnectionEnd{}
	case ServerSettingsType:
		msg = &ServerSettings{}
	case PlayerJoinType:
		msg = &PlayerJoin{}
	case PlayerDisconnectType:
		msg = &PlayerDisconnect{}
	case PlayerStatusType:
		msg = &PlayerStatus{}
	case ChatType:
		msg = &Chat{}
	case LockAcquireType:
		if fromClient {
			msg = &LockAcquireRequest{}
		} else {
			msg = &LockResult{Kind: t}
		}
	case LockReleaseType:
		if fromClient {
			msg = &LockReleaseRequest{}
		} else {
			msg = &LockResult{Kind: t}
		}
	case LockListType:
		msg = &LockList{}
	case SubspaceCreateType:
		msg = &SubspaceCreate{}
	case SubspaceChangeType:
		msg = &SubspaceChange{}
	case SubspaceReportRateType:
		msg = &SubspaceReportRate{}
	case SubspaceListType:
		msg = &SubspaceList{}
	case SetSubspaceType:
		msg = &SetSubspace{}
	case SubspaceRelockType:
		msg = &SubspaceRelock{}
	case SyncTimeRequestType:
		msg = &SyncTimeRequest{}
	case SyncTimeReplyType:
		msg = &SyncTimeReply{}
	case VesselUpdateType:
		msg = &VesselUpdate{}
	default:
		return nil, fmt.Errorf("no message definition for type %v", t)
	}

	if err := msg.Unmarshal(f.Payload); err != nil {
		return nil, err
	}
	return msg, nil
}
