// Package listeners holds the subscription registry that fans change
// notifications out to observers, filtered by each observer's interest.
package listeners

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"superparty/logging"

	"github.com/google/uuid"
)

var (
	ErrNilListener     = errors.New("listener is nil")
	ErrInvalidInterest = errors.New("invalid interest")
)

// Options describe what a new subscription wants.
type Options struct {
	Interest Interest
	// TeamID is the team a team-interest subscription tracks.
	TeamID uint
}

// Subscription is the handle returned by Register. Closing it is the
// only way to stop deliveries.
type Subscription struct {
	id       uuid.UUID
	seq      uint64
	listener Listener
	registry *Registry
	indexed  bool

	interest atomic.Int32
	tracked  atomic.Uint64
	closed   atomic.Bool

	mu       sync.Mutex
	versions map[Scope]uint64
}

func (s *Subscription) ID() uuid.UUID {
	return s.id
}

func (s *Subscription) Listener() Listener {
	return s.listener
}

func (s *Subscription) Interest() Interest {
	return Interest(s.interest.Load())
}

// TrackedTeam is the team id a team-interest subscription follows.
func (s *Subscription) TrackedTeam() uint {
	return uint(s.tracked.Load())
}

func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

func (s *Subscription) String() string {
	return s.id.String()
}

// Track switches the team a team-interest subscription follows.
func (s *Subscription) Track(teamID uint) {
	s.tracked.Store(uint64(teamID))
}

// Close unregisters the subscription. Safe to call more than once and
// from inside a callback.
func (s *Subscription) Close() {
	s.registry.Unregister(s)
}

// accept records version as delivered for scope unless a newer one has
// already gone out. Version 0 is always accepted.
func (s *Subscription) accept(scope Scope, version uint64) bool {
	if version == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.versions[scope]; ok && version < last {
		return false
	}
	s.versions[scope] = version
	return true
}

// Registry is a multicast dispatcher keyed by subscription handle.
type Registry struct {
	logger *slog.Logger

	mu         sync.RWMutex
	subs       map[uuid.UUID]*Subscription
	byListener map[Listener]*Subscription
	nextSeq    uint64

	failures atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logging.Default(logger).With("component", "listeners"),
		subs:       make(map[uuid.UUID]*Subscription),
		byListener: make(map[Listener]*Subscription),
	}
}

// add stores a subscription for l, or finds the one it already has.
func (r *Registry) add(l Listener, opts Options) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sub *Subscription
	exists := false
	indexable := reflect.TypeOf(l).Comparable()
	if indexable {
		sub, exists, indexable = r.lookup(l)
	}
	if !exists {
		r.nextSeq++
		sub = &Subscription{
			id:       uuid.New(),
			seq:      r.nextSeq,
			listener: l,
			registry: r,
			indexed:  indexable,
			versions: make(map[Scope]uint64),
		}
		r.subs[sub.id] = sub
		if indexable {
			r.byListener[l] = sub
		}
	}
	sub.interest.Store(int32(opts.Interest))
	sub.tracked.Store(uint64(opts.TeamID))
	return sub, exists
}

// lookup finds l in byListener. A comparable type can still hold an
// unhashable value in an interface field; such listeners are reported as
// not hashable and are never deduplicated.
func (r *Registry) lookup(l Listener) (sub *Subscription, ok, hashable bool) {
	defer func() {
		if recover() != nil {
			sub, ok, hashable = nil, false, false
		}
	}()
	sub, ok = r.byListener[l]
	return sub, ok, true
}

// Register adds l with the given options, then runs prime for the new
// subscription alone so it starts from current state. Registering a
// listener that is already present updates its options and returns the
// existing handle.
func (r *Registry) Register(l Listener, opts Options, prime func(*Subscription)) (*Subscription, error) {
	if l == nil {
		return nil, ErrNilListener
	}
	if !opts.Interest.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterest, int(opts.Interest))
	}

	sub, exists := r.add(l, opts)

	r.logger.Debug("listener registered", "subscription", sub.id, "interest", opts.Interest, "team", opts.TeamID, "existing", exists)

	if prime != nil {
		r.safely(sub, "initial", func() { prime(sub) })
	}
	return sub, nil
}

// Unregister removes sub. Deliveries that have not started by the time
// Unregister returns are suppressed.
func (r *Registry) Unregister(sub *Subscription) {
	if sub == nil || sub.closed.Swap(true) {
		return
	}
	r.mu.Lock()
	delete(r.subs, sub.id)
	if sub.indexed {
		if cur, ok := r.byListener[sub.listener]; ok && cur == sub {
			delete(r.byListener, sub.listener)
		}
	}
	r.mu.Unlock()
	r.logger.Debug("listener unregistered", "subscription", sub.id)
}

// Lookup returns the live subscription with id.
func (r *Registry) Lookup(id uuid.UUID) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	return sub, ok
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Failures returns how many deliveries have panicked.
func (r *Registry) Failures() uint64 {
	return r.failures.Load()
}

// Broadcast calls deliver once for each subscription whose interest
// matches scope, in registration order. The set of recipients is fixed
// when Broadcast is called. It returns the number of deliveries made.
func (r *Registry) Broadcast(scope Scope, version uint64, deliver func(Listener)) int {
	r.mu.RLock()
	targets := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.Interest().Matches(scope, sub.TrackedTeam()) {
			targets = append(targets, sub)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(targets, func(a, b *Subscription) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	n := 0
	for _, sub := range targets {
		if r.Deliver(sub, scope, version, deliver) {
			n++
		}
	}
	return n
}

// Deliver sends one notification to sub alone. It is skipped when sub is
// closed or has already seen a newer version of scope.
func (r *Registry) Deliver(sub *Subscription, scope Scope, version uint64, deliver func(Listener)) bool {
	if sub.Closed() || !sub.accept(scope, version) {
		return false
	}
	return r.safely(sub, scope.String(), func() { deliver(sub.listener) })
}

// safely runs fn, turning a panic into a logged delivery failure.
func (r *Registry) safely(sub *Subscription, scope string, fn func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failures.Add(1)
			r.logger.Warn("observer delivery failed", "subscription", sub.id, "scope", scope, "panic", rec)
			ok = false
		}
	}()
	fn()
	return true
}
