package game

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dcrodman/warpserver/internal/auth"
	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/core/frame"
	"github.com/dcrodman/warpserver/internal/packets"
)

// errClientLeft is returned when the client ends the connection itself.
var errClientLeft = errors.New("client ended the connection")

// handlerPanic is a recovered panic from the handler of a single message.
type handlerPanic struct {
	Type  packets.Type
	Value interface{}
}

func (p *handlerPanic) Error() string {
	return fmt.Sprintf("panic while handling %v: %v", p.Type, p.Value)
}

type unmarshaler interface {
	Unmarshal(data []byte) error
}

// decode parses a payload, treating any failure as a protocol violation.
func decode(t packets.Type, payload []byte, msg unmarshaler) error {
	if err := msg.Unmarshal(payload); err != nil {
		return core.Violationf("malformed %v message: %v", t, err)
	}
	return nil
}

// Handle processes one frame read from c. Split messages are reassembled and
// then handled like any other message. A returned error means the connection
// must be dropped, see Drop.
func (s *Server) Handle(ctx context.Context, c *client.Client, f frame.Frame) (err error) {
	msgType := packets.Type(f.Type)
	defer func() {
		if r := recover(); r != nil {
			s.Logger.WithFields(c.LogFields()).Errorf("[%s] panic while handling %v: %v, trace: %s",
				s.Name, msgType, r, debug.Stack())
			err = &handlerPanic{Type: msgType, Value: r}
		}
	}()

	s.Metrics.FrameReceived(msgType.String())
	if s.packetLogger != nil {
		s.packetLogger.LogClientPacket(c.ID, f)
	}

	switch c.State() {
	case client.StateDisconnecting, client.StateDisconnected:
		return nil
	}

	if frame.IsSplitType(f.Type) {
		if !c.IsAuthenticated() {
			return core.Violationf("%v sent before handshake", msgType)
		}
		whole, done, err := c.Reassembler.Feed(f)
		if err != nil || !done {
			return err
		}
		f = whole
		msgType = packets.Type(f.Type)
	}

	return s.dispatch(ctx, c, msgType, f.Payload)
}

func (s *Server) dispatch(ctx context.Context, c *client.Client, t packets.Type, payload []byte) error {
	if !t.Valid() {
		return core.Violationf("unknown message type %d", uint32(t))
	}
	if !t.SentByClient() {
		return core.Violationf("%v cannot be sent by a client", t)
	}
	if !c.IsAuthenticated() && !t.AllowedBeforeAuth() {
		return core.Violationf("%v sent before handshake", t)
	}

	switch t {
	case packets.HeartbeatType:
		return nil
	case packets.HandshakeRequestType:
		return s.handleHandshake(ctx, c, payload)
	case packets.ConnectionEndType:
		var end packets.ConnectionEnd
		if err := decode(t, payload, &end); err != nil {
			return err
		}
		s.Logger.WithFields(c.LogFields()).Infof("[%s] client disconnected: %s", s.Name, end.Reason)
		return errClientLeft
	case packets.ChatType:
		return s.handleChat(c, payload)
	case packets.PlayerStatusType:
		return s.handlePlayerStatus(c, payload)
	case packets.VesselUpdateType:
		return s.handleVesselUpdate(c, payload)
	case packets.SyncTimeRequestType:
		return s.handleSyncTime(c, payload)
	case packets.LockAcquireType:
		return s.handleLockAcquire(c, payload)
	case packets.LockReleaseType:
		return s.handleLockRelease(c, payload)
	case packets.SubspaceCreateType:
		return s.handleSubspaceCreate(c, payload)
	case packets.SubspaceChangeType:
		return s.handleSubspaceChange(c, payload)
	case packets.SubspaceReportRateType:
		return s.handleSubspaceReportRate(c, payload)
	}
	return core.Violationf("%v cannot be sent by a client", t)
}

// classify maps an error that ended a connection to the reason the client is
// given. notify is false when there is nobody left to tell.
func (s *Server) classify(err error) (reason string, notify bool) {
	if errors.Is(err, errClientLeft) {
		return "", false
	}
	var panicked *handlerPanic
	if errors.As(err, &panicked) {
		return fmt.Sprintf("Server error while handling %v", panicked.Type), true
	}
	if pe, ok := core.AsProtocolError(err); ok {
		return pe.Reason, true
	}
	if r, ok := auth.AsRejection(err); ok {
		return r.Reason, true
	}
	return "Internal server error", true
}

// Drop ends the connection of c because of err.
func (s *Server) Drop(c *client.Client, err error) {
	reason, notify := s.classify(err)
	if !notify {
		_ = c.Close()
		return
	}

	s.Logger.WithFields(c.LogFields()).Warnf("[%s] dropping client: %v", s.Name, err)
	c.Disconnect(reason)
}
