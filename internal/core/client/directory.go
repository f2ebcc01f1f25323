package client

import (
	"sort"
	"sync"

	"golang.org/x/text/cases"

	"github.com/dcrodman/warpserver/internal/packets"
)

var nameFolder = cases.Fold()

// FoldName returns the key under which player names are compared, so that
// names differing only in case are treated as the same player.
func FoldName(name string) string {
	return nameFolder.String(name)
}

// Directory is the set of live connections.
type Directory struct {
	mu      sync.RWMutex
	clients map[string]*Client
	names   map[string]*Client
}

func NewDirectory() *Directory {
	return &Directory{
		clients: make(map[string]*Client),
		names:   make(map[string]*Client),
	}
}

// Add registers a newly accepted connection.
func (d *Directory) Add(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c.ID] = c
}

// Remove forgets c. It reports whether c was present.
func (d *Directory) Remove(c *Client) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.clients[c.ID]; !ok {
		return false
	}
	delete(d.clients, c.ID)

	for key, holder := range d.names {
		if holder == c {
			delete(d.names, key)
		}
	}
	return true
}

// Claim indexes c under name. It fails if another live client already holds
// the name. The client's own name is not changed.
func (d *Directory) Claim(c *Client, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := FoldName(name)
	if holder, ok := d.names[key]; ok && holder != c {
		return false
	}
	if _, ok := d.clients[c.ID]; !ok {
		return false
	}
	d.names[key] = c
	return true
}

// Release drops the name index entry for name if c holds it.
func (d *Directory) Release(c *Client, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := FoldName(name)
	if d.names[key] == c {
		delete(d.names, key)
	}
}

// FindByName returns the client that has claimed name.
func (d *Directory) FindByName(name string) (*Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.names[FoldName(name)]
	return c, ok
}

// FindByAddress returns every client connected from address.
func (d *Directory) FindByAddress(address string) []*Client {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var found []*Client
	for _, c := range d.clients {
		if c.IPAddr() == address {
			found = append(found, c)
		}
	}
	return found
}

// All returns every connection.
func (d *Directory) All() []*Client {
	d.mu.RLock()
	defer d.mu.RUnlock()

	all := make([]*Client, 0, len(d.clients))
	for _, c := range d.clients {
		all = append(all, c)
	}
	return all
}

// Authenticated returns the clients that finished their handshake, ordered by name.
func (d *Directory) Authenticated() []*Client {
	d.mu.RLock()
	players := make([]*Client, 0, len(d.clients))
	for _, c := range d.clients {
		if c.IsAuthenticated() {
			players = append(players, c)
		}
	}
	d.mu.RUnlock()

	sort.Slice(players, func(i, j int) bool { return players[i].Name() < players[j].Name() })
	return players
}

// PlayerNames returns the names of every authenticated client, sorted.
func (d *Directory) PlayerNames() []string {
	players := d.Authenticated()
	names := make([]string, len(players))
	for i, c := range players {
		names[i] = c.Name()
	}
	return names
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

func (d *Directory) PlayerCount() int {
	return len(d.Authenticated())
}

// Broadcast queues msg for every authenticated client except skip, which may be nil.
func (d *Directory) Broadcast(msg packets.Message, p Priority, skip *Client) {
	f := packets.Frame(msg)
	for _, c := range d.Authenticated() {
		if c != skip {
			c.SendFrame(f, p)
		}
	}
}

// BroadcastToSubspace queues msg for the authenticated clients in subspace id
// except skip.
func (d *Directory) BroadcastToSubspace(id int32, msg packets.Message, p Priority, skip *Client) {
	f := packets.Frame(msg)
	for _, c := range d.Authenticated() {
		if c != skip && c.Subspace() == id {
			c.SendFrame(f, p)
		}
	}
}

// DisconnectAll drops every connection with reason.
func (d *Directory) DisconnectAll(reason string) {
	for _, c := range d.All() {
		c.Disconnect(reason)
	}
}
