package client

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/warpserver/internal/core/frame"
	"github.com/dcrodman/warpserver/internal/packets"
)

// State is a step in the life of a connection.
type State int32

const (
	StateConnected State = iota
	StateHandshaking
	StateAuthenticated
	StateRunning
	StateDisconnecting
	StateDisconnected
)

var stateNames = []string{"connected", "handshaking", "authenticated", "running", "disconnecting", "disconnected"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// UnknownName is the display name of a connection that has not completed its handshake.
const UnknownName = "Unknown"

// How long a single frame write may block before the connection is dropped.
const writeTimeout = 10 * time.Second

// Client represents one connected game client.
type Client struct {
	// ID uniquely identifies the connection in logs.
	ID string

	connection net.Conn
	reader     *bufio.Reader
	ipAddr     string
	port       string
	queue      *sendQueue

	// Reassembler rebuilds split messages. Only the reading goroutine uses it.
	Reassembler frame.Reassembler

	// OnSend is called with every frame after it has been written.
	OnSend func(c *Client, f frame.Frame)

	mu                sync.RWMutex
	state             State
	name              string
	token             string
	subspace          int32
	rate              float32
	disconnectStarted time.Time

	lastSend    atomic.Int64
	lastReceive atomic.Int64
	sending     atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connection net.Conn) *Client {
	host, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		host = connection.RemoteAddr().String()
	}

	c := &Client{
		ID:         uuid.NewString(),
		connection: connection,
		reader:     bufio.NewReader(connection),
		ipAddr:     host,
		port:       port,
		queue:      newSendQueue(),
		state:      StateConnected,
		name:       UnknownName,
		rate:       1,
		done:       make(chan struct{}),
	}
	now := time.Now().UnixNano()
	c.lastSend.Store(now)
	c.lastReceive.Store(now)
	return c
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// BeginHandshake moves a freshly connected client into the handshake.
func (c *Client) BeginHandshake() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return false
	}
	c.state = StateHandshaking
	return true
}

// Authenticate records the identity the client proved during the handshake.
func (c *Client) Authenticate(name, token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected && c.state != StateHandshaking {
		return false
	}
	c.state = StateAuthenticated
	c.name = name
	c.token = token
	return true
}

// MarkRunning is called once the initial state has been queued.
func (c *Client) MarkRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return false
	}
	c.state = StateRunning
	return true
}

// IsAuthenticated reports whether the handshake succeeded and the connection
// is not on its way out.
func (c *Client) IsAuthenticated() bool {
	s := c.State()
	return s == StateAuthenticated || s == StateRunning
}

// Name is the player name, or UnknownName before authentication.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Subspace() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subspace
}

func (c *Client) SetSubspace(id int32) {
	c.mu.Lock()
	c.subspace = id
	c.mu.Unlock()
}

// Rate is the last warp rate the client reported.
func (c *Client) Rate() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate
}

func (c *Client) SetRate(rate float32) {
	c.mu.Lock()
	c.rate = rate
	c.mu.Unlock()
}

// LogFields identifies the client in structured logs.
func (c *Client) LogFields() logrus.Fields {
	return logrus.Fields{
		"session": c.ID,
		"address": c.ipAddr,
		"player":  c.Name(),
	}
}

func (c *Client) LastSend() time.Time    { return time.Unix(0, c.lastSend.Load()) }
func (c *Client) LastReceive() time.Time { return time.Unix(0, c.lastReceive.Load()) }

// SendInProgress reports whether a frame is being written right now.
func (c *Client) SendInProgress() bool { return c.sending.Load() }

// ReadFrame blocks until the next frame arrives from the client.
func (c *Client) ReadFrame() (frame.Frame, error) {
	f, err := frame.ReadFrame(c.reader)
	if err != nil {
		return f, err
	}
	c.lastReceive.Store(time.Now().UnixNano())
	return f, nil
}

// Send queues msg. It reports false if the client is disconnecting and the
// message was dropped.
func (c *Client) Send(msg packets.Message, p Priority) bool {
	return c.SendFrame(packets.Frame(msg), p)
}

// SendFrame queues an already encoded frame.
func (c *Client) SendFrame(f frame.Frame, p Priority) bool {
	return c.queue.push(f, p)
}

// QueueLen returns the number of frames waiting in the high, split, and low queues.
func (c *Client) QueueLen() (high, split, low int) {
	return c.queue.Len()
}

// Disconnect tells the client why it is being dropped and closes the connection
// once every queued high priority frame has been written. Pending low priority
// frames are discarded. Only the first call has any effect.
func (c *Client) Disconnect(reason string) bool {
	c.mu.Lock()
	if c.state == StateDisconnecting || c.state == StateDisconnected {
		c.mu.Unlock()
		return false
	}
	c.state = StateDisconnecting
	c.disconnectStarted = time.Now()
	c.mu.Unlock()

	c.queue.push(packets.Frame(&packets.ConnectionEnd{Reason: reason}), HighPriority)
	c.queue.close()
	return true
}

// DisconnectingSince returns when Disconnect was called, if it was.
func (c *Client) DisconnectingSince() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disconnectStarted, c.state == StateDisconnecting
}

// WriteLoop writes queued frames until the connection closes. Writing a
// ConnectionEnd frame closes the connection once the write completes.
func (c *Client) WriteLoop() {
	for {
		f, ok := c.queue.pop()
		if !ok {
			if c.queue.isClosed() {
				_ = c.Close()
				return
			}
			select {
			case <-c.queue.wake:
				continue
			case <-c.done:
				return
			}
		}

		if err := c.write(f); err != nil {
			_ = c.Close()
			return
		}
		if packets.Type(f.Type) == packets.ConnectionEndType {
			_ = c.Close()
			return
		}
	}
}

func (c *Client) write(f frame.Frame) error {
	c.sending.Store(true)
	defer c.sending.Store(false)

	if err := c.connection.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to send to client %v: %w", c.IPAddr(), err)
	}
	if err := frame.WriteFrame(c.connection, f); err != nil {
		return fmt.Errorf("failed to send to client %v: %w", c.IPAddr(), err)
	}
	c.lastSend.Store(time.Now().UnixNano())

	if c.OnSend != nil {
		c.OnSend(c, f)
	}
	return nil
}

// Close the TCP connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()

		c.queue.close()
		close(c.done)
		err = c.connection.Close()
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
