package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

const (
	// DefaultInitialCapacity is the number of slots allocated at creation.
	DefaultInitialCapacity = 10

	// DefaultGrowthIncrement is the number of slots added on every expansion.
	DefaultGrowthIncrement = 10
)

// ErrCapacityExhausted is returned by Insert when the registry cannot grow.
// The identifier is dropped; the registry remains usable.
var ErrCapacityExhausted = errors.New("registry capacity exhausted")

// Config controls registry sizing. Zero values select the defaults.
type Config struct {
	// InitialCapacity is the number of slots allocated at creation.
	InitialCapacity int `mapstructure:"initial_capacity" validate:"min=0"`

	// GrowthIncrement is the fixed number of slots added when an insert
	// would exceed the current capacity.
	GrowthIncrement int `mapstructure:"growth_increment" validate:"min=0"`

	// MaxEntries caps the number of identifiers. 0 means unbounded.
	MaxEntries int `mapstructure:"max_entries" validate:"min=0"`
}

// Registry is the shared, ordered collection of registered plane identifiers.
//
// The collection is kept sorted in ascending byte-wise order after every
// completed Insert. Duplicates are kept. Entries are never removed.
//
// Thread safety:
// Insert holds the write lock for the whole grow-and-insert step and Snapshot
// holds the read lock while copying, so a reader never observes a partially
// inserted or partially resized sequence.
//
// Example usage:
//
//	reg := New(Config{})
//	_ = reg.Insert("b1")
//	_ = reg.Insert("a1")
//	reg.Snapshot() // ["a1", "b1"]
type Registry struct {
	mu        sync.RWMutex
	planes    []string
	increment int
	max       int
}

// New creates an empty registry sized by cfg.
func New(cfg Config) *Registry {
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = DefaultInitialCapacity
	}
	if cfg.GrowthIncrement <= 0 {
		cfg.GrowthIncrement = DefaultGrowthIncrement
	}
	if cfg.MaxEntries < 0 {
		cfg.MaxEntries = 0
	}

	return &Registry{
		planes:    make([]string, 0, cfg.InitialCapacity),
		increment: cfg.GrowthIncrement,
		max:       cfg.MaxEntries,
	}
}

// NewRegistry creates an empty registry with default sizing.
func NewRegistry() *Registry {
	return New(Config{})
}

// Insert adds id and restores sorted order.
//
// When the next insert would exceed the current capacity, the backing
// storage grows by the configured increment. Once MaxEntries identifiers are
// held, Insert returns ErrCapacityExhausted and id is dropped.
func (r *Registry) Insert(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.planes) >= r.max {
		return fmt.Errorf("insert %q: %w", id, ErrCapacityExhausted)
	}
	if len(r.planes)+1 > cap(r.planes) {
		r.grow()
	}

	// Insert after any equal entries so duplicates keep arrival order.
	pos, _ := slices.BinarySearch(r.planes, id)
	for pos < len(r.planes) && r.planes[pos] == id {
		pos++
	}
	r.planes = slices.Insert(r.planes, pos, id)

	return nil
}

// grow must be called with the write lock held.
func (r *Registry) grow() {
	next := cap(r.planes) + r.increment
	if r.max > 0 && next > r.max {
		next = r.max
	}

	grown := make([]string, len(r.planes), next)
	copy(grown, r.planes)
	r.planes = grown
}

// Snapshot returns a copy of the current sorted contents. The copy is owned
// by the caller and can be written to the network without holding the lock.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.planes)
}

// Len returns the number of registered identifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.planes)
}

// Cap returns the number of allocated slots.
func (r *Registry) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cap(r.planes)
}
