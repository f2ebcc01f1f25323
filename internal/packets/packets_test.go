package packets

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/dcrodman/warpserver/internal/core/bytes"
)

func TestHandshakeReply_ModControlTrailer(t *testing.T) {
	tests := []struct {
		name  string
		reply HandshakeReply
	}{
		{
			name: "rejection has no trailer",
			reply: HandshakeReply{
				Code:            HandshakeProtocolMismatch,
				Reason:          "Protocol mismatch",
				ProtocolVersion: ProtocolVersion,
				ServerVersion:   "v1.0.0",
			},
		},
		{
			name: "success with mod control",
			reply: HandshakeReply{
				Code:            HandshakeSuccess,
				ProtocolVersion: ProtocolVersion,
				ServerVersion:   "v1.0.0",
				HasModControl:   true,
				ModControlMode:  2,
				ModControlText:  "!required-parts.cfg",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got HandshakeReply
			if err := got.Unmarshal(tt.reply.Marshal()); err != nil {
				t.Fatalf("Unmarshal() returned an unexpected error: %v", err)
			}
			if diff := deep.Equal(tt.reply, got); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestHandshakeRequest_Malformed(t *testing.T) {
	// Version followed by a name whose declared length runs past the payload.
	payload := bytes.NewWriter().WriteInt32(ProtocolVersion).WriteInt32(50).WriteRaw([]byte("Bob")).Bytes()

	var req HandshakeRequest
	if err := req.Unmarshal(payload); err == nil {
		t.Fatal("Unmarshal() of a truncated handshake did not return an error")
	}
}

func TestConnectionEnd_EmptyPayload(t *testing.T) {
	var p ConnectionEnd
	if err := p.Unmarshal(nil); err != nil {
		t.Fatalf("Unmarshal() of an empty payload returned an error: %v", err)
	}
	if p.Reason != "" {
		t.Errorf("Reason = %q, want empty", p.Reason)
	}
}

func TestLockList_Unmarshal(t *testing.T) {
	want := LockList{Locks: []LockEntry{
		{LockName: "control-vessel-1", Owner: "Bob"},
		{LockName: "update-vessel-1", Owner: "Jeb"},
	}}
	var got LockList
	if err := got.Unmarshal(want.Marshal()); err != nil {
		t.Fatalf("Unmarshal() returned an unexpected error: %v", err)
	}
	if diff := deep.Equal(want, got); diff != nil {
		t.Error(diff)
	}

	negative := bytes.NewWriter().WriteInt32(-1).Bytes()
	if err := got.Unmarshal(negative); err == nil {
		t.Error("Unmarshal() with a negative count did not return an error")
	}
}

func TestLockResult_TypeFollowsKind(t *testing.T) {
	acquire := &LockResult{Kind: LockAcquireType}
	release := &LockResult{Kind: LockReleaseType}
	if Frame(acquire).Type != uint32(LockAcquireType) {
		t.Errorf("acquire result framed as %d", Frame(acquire).Type)
	}
	if Frame(release).Type != uint32(LockReleaseType) {
		t.Errorf("release result framed as %d", Frame(release).Type)
	}
}

func TestType_Classification(t *testing.T) {
	tests := []struct {
		t           Type
		beforeAuth  bool
		fromClient  bool
		wantedValid bool
	}{
		{HeartbeatType, true, true, true},
		{HandshakeRequestType, true, true, true},
		{ConnectionEndType, true, true, true},
		{ChatType, false, true, true},
		{LockAcquireType, false, true, true},
		{SplitStartType, false, true, true},
		{HandshakeReplyType, false, false, true},
		{SubspaceRelockType, false, false, true},
		{Type(1000), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.t.String(), func(t *testing.T) {
			if got := tt.t.AllowedBeforeAuth(); got != tt.beforeAuth {
				t.Errorf("AllowedBeforeAuth() = %v, want %v", got, tt.beforeAuth)
			}
			if got := tt.t.SentByClient(); got != tt.fromClient {
				t.Errorf("SentByClient() = %v, want %v", got, tt.fromClient)
			}
			if got := tt.t.Valid(); got != tt.wantedValid {
				t.Errorf("Valid() = %v, want %v", got, tt.wantedValid)
			}
		})
	}
}

func TestSubspaceList_Unmarshal(t *testing.T) {
	want := SubspaceList{Subspaces: []SubspaceEntry{
		{ID: 0, ReferenceTick: 100, SimulationTime: 12.5, Rate: 1},
		{ID: 3, ReferenceTick: 200, SimulationTime: 99.25, Rate: 0.5},
	}}
	var got SubspaceList
	if err := got.Unmarshal(want.Marshal()); err != nil {
		t.Fatalf("Unmarshal() returned an unexpected error: %v", err)
	}
	if diff := deep.Equal(want, got); diff != nil {
		t.Error(diff)
	}
}
