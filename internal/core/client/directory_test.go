package client

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/warpserver/internal/packets"
)

func authenticatedClient(t *testing.T, d *Directory, name string) *Client {
	t.Helper()
	c, _ := newTestClient(t)
	d.Add(c)
	if !d.Claim(c, name) {
		t.Fatalf("Claim(%s) failed", name)
	}
	c.Authenticate(name, "token-"+name)
	c.MarkRunning()
	return c
}

func TestDirectory_Claim(t *testing.T) {
	d := NewDirectory()
	jeb := authenticatedClient(t, d, "Jeb")

	other, _ := newTestClient(t)
	d.Add(other)
	if d.Claim(other, "jeb") {
		t.Error("names differing only in case should collide")
	}
	if !d.Claim(jeb, "Jeb") {
		t.Error("the holder may re-claim its own name")
	}

	found, ok := d.FindByName("JEB")
	if !ok || found != jeb {
		t.Errorf("FindByName() = %v, %v", found, ok)
	}

	d.Remove(jeb)
	if _, ok := d.FindByName("Jeb"); ok {
		t.Error("removed client should no longer hold its name")
	}
	if !d.Claim(other, "jeb") {
		t.Error("name should be free after the holder is removed")
	}

	stranger, _ := newTestClient(t)
	if d.Claim(stranger, "Val") {
		t.Error("clients must be added before claiming a name")
	}
}

func TestDirectory_Listing(t *testing.T) {
	d := NewDirectory()
	authenticatedClient(t, d, "Val")
	authenticatedClient(t, d, "Bill")
	pending, _ := newTestClient(t)
	d.Add(pending)

	if d.Count() != 3 {
		t.Errorf("expected 3 connections, got %d", d.Count())
	}
	if d.PlayerCount() != 2 {
		t.Errorf("expected 2 players, got %d", d.PlayerCount())
	}
	if diff := cmp.Diff([]string{"Bill", "Val"}, d.PlayerNames()); diff != "" {
		t.Errorf("unexpected player names; diff:\n%s", diff)
	}
	if got := d.FindByAddress("127.0.0.1"); len(got) != 3 {
		t.Errorf("expected 3 clients from 127.0.0.1, got %d", len(got))
	}
	if !d.Remove(pending) || d.Remove(pending) {
		t.Error("Remove() should only succeed once")
	}
}

func TestDirectory_Broadcast(t *testing.T) {
	d := NewDirectory()
	jeb := authenticatedClient(t, d, "Jeb")
	bill := authenticatedClient(t, d, "Bill")
	val := authenticatedClient(t, d, "Val")
	val.SetSubspace(1)
	pending, _ := newTestClient(t)
	d.Add(pending)

	d.Broadcast(&packets.PlayerJoin{PlayerName: "Jeb"}, HighPriority, jeb)
	d.BroadcastToSubspace(1, &packets.Heartbeat{}, LowPriority, nil)

	queued := func(c *Client) (int, int) {
		high, _, low := c.QueueLen()
		return high, low
	}
	if h, l := queued(jeb); h != 0 || l != 0 {
		t.Errorf("skipped client got frames: high=%d low=%d", h, l)
	}
	if h, l := queued(bill); h != 1 || l != 0 {
		t.Errorf("bill: high=%d low=%d", h, l)
	}
	if h, l := queued(val); h != 1 || l != 1 {
		t.Errorf("val: high=%d low=%d", h, l)
	}
	if h, l := queued(pending); h != 0 || l != 0 {
		t.Errorf("unauthenticated client got frames: high=%d low=%d", h, l)
	}
}

func TestDirectory_DisconnectAll(t *testing.T) {
	d := NewDirectory()
	jeb := authenticatedClient(t, d, "Jeb")
	go jeb.WriteLoop()

	d.DisconnectAll("Server shutting down")

	select {
	case <-jeb.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client was not closed")
	}
	if jeb.State() != StateDisconnected {
		t.Errorf("expected disconnected, got %v", jeb.State())
	}
}
