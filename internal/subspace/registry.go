// Package subspace keeps the shared simulation clocks that let players run time
// at different rates while still agreeing on where everyone is in time.
//
// Every subspace is an anchor: a server tick, the simulation time at that tick,
// and the rate at which simulation time advances from there. Ticks are Unix
// nanoseconds taken from the server clock.
package subspace

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MinRate and MaxRate bound the rate of every subspace.
	MinRate float32 = 0.3
	MaxRate float32 = 1.0
	// RelockThreshold is how far the slowest member's rate may drift from the
	// stored rate before the subspace is relocked.
	RelockThreshold = 0.03
)

var (
	ErrSubspaceExists = errors.New("subspace already exists")
	ErrNoSuchSubspace = errors.New("subspace does not exist")
	ErrNotMember      = errors.New("player is not a member of the subspace")
	ErrInvalidTime    = errors.New("simulation time is not finite")
)

// Subspace is a snapshot of a single clock.
type Subspace struct {
	ID             int32
	ReferenceTick  int64
	SimulationTime float64
	Rate           float32
}

// Project returns the simulation time of s at the server tick now.
func (s Subspace) Project(now int64) float64 {
	elapsed := float64(now-s.ReferenceTick) / float64(time.Second)
	return s.SimulationTime + elapsed*float64(s.Rate)
}

// Store persists the single most advanced subspace.
type Store interface {
	// SaveLatest records s, whose SimulationTime is valid at s.ReferenceTick.
	SaveLatest(s Subspace) error
	// LoadLatest returns the last saved subspace, if there is one.
	LoadLatest() (Subspace, bool, error)
}

// ClampRate limits rate to [MinRate, MaxRate]. NaN is treated as the slowest rate.
func ClampRate(rate float32) float32 {
	if !(rate >= MinRate) {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}

type member struct {
	subspace int32
	rate     float32
	reported bool
}

// Registry holds every subspace and which player is in which. Call Init before
// using it.
type Registry struct {
	Store  Store
	Logger *logrus.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time

	mu        sync.Mutex
	subspaces map[int32]*Subspace
	members   map[string]*member
	// seq numbers each snapshot taken under mu.
	seq uint64

	// persistMu serializes writes to Store. savedSeq is the newest snapshot
	// written so far.
	persistMu sync.Mutex
	savedSeq  uint64
}

// pending is a snapshot waiting to be written to the Store.
type pending struct {
	latest Subspace
	seq    uint64
}

// Init seeds subspace 0. If the store has a saved subspace, subspace 0 resumes
// from its simulation time at the default rate.
func (r *Registry) Init() error {
	if r.Clock == nil {
		r.Clock = time.Now
	}
	r.subspaces = make(map[int32]*Subspace)
	r.members = make(map[string]*member)

	initial := &Subspace{ID: 0, ReferenceTick: r.now(), Rate: MaxRate}
	if r.Store != nil {
		saved, ok, err := r.Store.LoadLatest()
		if err != nil {
			return fmt.Errorf("loading saved subspace: %w", err)
		}
		switch {
		case !ok:
		case !finite(saved.SimulationTime):
			if r.Logger != nil {
				r.Logger.Warnf("[SUBSPACE] ignoring saved subspace with simulation time %v", saved.SimulationTime)
			}
		default:
			initial.SimulationTime = saved.SimulationTime
		}
	}
	r.subspaces[0] = initial
	return nil
}

func (r *Registry) now() int64 {
	return r.Clock().UnixNano()
}

// Now returns the current server tick.
func (r *Registry) Now() int64 {
	return r.now()
}

// Latest returns the id of the subspace furthest ahead in simulation time.
// Ties go to the lowest id.
func (r *Registry) Latest() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latestLocked(r.now()).ID
}

// latestLocked skips subspaces whose projection is not finite, falling back to
// subspace 0 when none is.
func (r *Registry) latestLocked(now int64) *Subspace {
	var latest *Subspace
	latestTime := math.Inf(-1)
	for _, s := range r.subspaces {
		t := s.Project(now)
		if !finite(t) {
			continue
		}
		if latest == nil || t > latestTime || (t == latestTime && s.ID < latest.ID) {
			latest, latestTime = s, t
		}
	}
	if latest == nil {
		return r.subspaces[0]
	}
	return latest
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Get returns a copy of the subspace with the given id.
func (r *Registry) Get(id int32) (Subspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subspaces[id]
	if !ok {
		return Subspace{}, false
	}
	return *s, true
}

// List returns a copy of every subspace ordered by id.
func (r *Registry) List() []Subspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subspace, 0, len(r.subspaces))
	for _, s := range r.subspaces {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Create adds a new subspace and moves creator into it. The rate is clamped.
// A subspace whose simulation time, or its projection to the current tick, is
// not finite is rejected with ErrInvalidTime.
func (r *Registry) Create(s Subspace, creator string) (Subspace, error) {
	r.mu.Lock()
	if _, exists := r.subspaces[s.ID]; exists {
		r.mu.Unlock()
		return Subspace{}, fmt.Errorf("creating subspace %d: %w", s.ID, ErrSubspaceExists)
	}
	created := s
	created.Rate = ClampRate(s.Rate)
	if !finite(created.SimulationTime) || !finite(created.Project(r.now())) {
		r.mu.Unlock()
		return Subspace{}, fmt.Errorf("creating subspace %d: %w", s.ID, ErrInvalidTime)
	}
	r.subspaces[created.ID] = &created
	r.members[creator] = &member{subspace: created.ID}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snapshot)
	return created, nil
}

// Join moves player into subspace id, discarding any rate it reported before.
func (r *Registry) Join(player string, id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subspaces[id]; !ok {
		return fmt.Errorf("joining subspace %d: %w", id, ErrNoSuchSubspace)
	}
	r.members[player] = &member{subspace: id}
	return nil
}

// Leave removes player from whatever subspace it was in.
func (r *Registry) Leave(player string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, player)
}

// SubspaceOf returns the subspace player is currently in.
func (r *Registry) SubspaceOf(player string) (int32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[player]
	if !ok {
		return 0, false
	}
	return m.subspace, true
}

// Members returns the players in subspace id, sorted.
func (r *Registry) Members(id int32) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var players []string
	for name, m := range r.members {
		if m.subspace == id {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players
}

// ReportRate records the playback rate player observes in subspace id. When the
// slowest reported rate among the members differs from the stored rate by more
// than RelockThreshold, the subspace is relocked at the current tick and the
// new state is returned with relocked set.
func (r *Registry) ReportRate(id int32, player string, rate float32) (Subspace, bool, error) {
	s, snapshot, relocked, err := r.reportRate(id, player, rate)
	if err != nil {
		return Subspace{}, false, err
	}
	r.persist(snapshot)
	return s, relocked, nil
}

func (r *Registry) reportRate(id int32, player string, rate float32) (Subspace, *pending, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.subspaces[id]
	if !ok {
		return Subspace{}, nil, false, fmt.Errorf("reporting rate for subspace %d: %w", id, ErrNoSuchSubspace)
	}
	m, ok := r.members[player]
	if !ok || m.subspace != id {
		return Subspace{}, nil, false, fmt.Errorf("reporting rate for subspace %d: %w", id, ErrNotMember)
	}
	m.rate = ClampRate(rate)
	m.reported = true

	slowest := MaxRate
	for _, other := range r.members {
		if other.subspace == id && other.reported && other.rate < slowest {
			slowest = other.rate
		}
	}
	slowest = ClampRate(slowest)

	if math.Abs(float64(slowest-current.Rate)) <= RelockThreshold {
		return *current, nil, false, nil
	}

	now := r.now()
	current.SimulationTime = current.Project(now)
	current.ReferenceTick = now
	current.Rate = slowest

	return *current, r.snapshotLocked(), true, nil
}

// snapshotLocked captures the latest subspace projected to the current tick.
// It returns nil when there is no Store.
func (r *Registry) snapshotLocked() *pending {
	if r.Store == nil {
		return nil
	}
	now := r.now()
	latest := *r.latestLocked(now)
	latest.SimulationTime = latest.Project(now)
	latest.ReferenceTick = now
	r.seq++
	return &pending{latest: latest, seq: r.seq}
}

// persist writes p unless a newer snapshot has already been written. It must
// be called without holding mu.
func (r *Registry) persist(p *pending) {
	if p == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if p.seq <= r.savedSeq {
		return
	}
	if err := r.Store.SaveLatest(p.latest); err != nil {
		if r.Logger != nil {
			r.Logger.Warnf("[SUBSPACE] failed to save subspace %d: %v", p.latest.ID, err)
		}
		return
	}
	r.savedSeq = p.seq
}
