package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kitstore/internal/localstore"
	"github.com/noah-isme/kitstore/internal/obs"
	"github.com/noah-isme/kitstore/internal/pricing"
)

var nopLogger = zerolog.Nop()

// errDuplicateLine marks a persisted cart whose lines share an identifier.
var errDuplicateLine = errors.New("duplicate line id")

// Config groups Store dependencies.
type Config struct {
	Storage localstore.Storage
	Logger  *zerolog.Logger
	Now     func() time.Time
}

// Store holds the cart for one storefront session and persists it after every mutation.
// Consumers receive the new contents through Subscribe.
type Store struct {
	mu       sync.Mutex
	storage  localstore.Storage
	logger   *zerolog.Logger
	now      func() time.Time
	items    []Item
	lastLine int64
	nextSub  int
	subs     map[int]func([]Item)
}

// NewStore restores the persisted cart when present. Missing or malformed data
// yields an empty cart; the failure is logged, never returned.
func NewStore(ctx context.Context, cfg Config) *Store {
	s := &Store{
		storage: cfg.Storage,
		logger:  cfg.Logger,
		now:     cfg.Now,
		subs:    make(map[int]func([]Item)),
	}
	if s.logger == nil {
		s.logger = &nopLogger
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) {
	var saved []Item
	found, err := localstore.GetJSON(ctx, s.storage, localstore.KeyCart, &saved)
	if err == nil && found {
		err = validateRestored(saved)
	}
	if err != nil {
		obs.CountCartStorageFailure("restore")
		s.logger.Warn().Err(err).Str("key", localstore.KeyCart).Msg("cart_restore_failed")
		return
	}
	s.items = saved
	for _, it := range saved {
		if it.LineID > s.lastLine {
			s.lastLine = it.LineID
		}
	}
}

func validateRestored(items []Item) error {
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.LineID]; dup {
			return fmt.Errorf("line %d: %w", it.LineID, errDuplicateLine)
		}
		seen[it.LineID] = struct{}{}
		if it.UnitPrice < 0 {
			return fmt.Errorf("line %d: %w", it.LineID, pricing.ErrInvalidAmount)
		}
	}
	return nil
}

// Add appends a line for product in the given size and returns it. It is a
// no-op returning false when the product is missing or the size is not offered.
func (s *Store) Add(ctx context.Context, product *Product, size Size) (Item, bool) {
	if product == nil || !size.Valid() {
		return Item{}, false
	}
	s.mu.Lock()
	item := Item{
		LineID:    s.nextLineIDLocked(),
		ProductID: product.ID,
		Name:      product.Name,
		Team:      product.Team,
		UnitPrice: product.Price,
		Size:      size,
	}
	s.items = append(s.items, item)
	snapshot := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(snapshot)
	return item, true
}

// Remove deletes the line with the given identifier. Unknown identifiers leave
// the contents untouched.
func (s *Store) Remove(ctx context.Context, lineID int64) bool {
	s.mu.Lock()
	removed := false
	kept := s.items[:0:0]
	for _, it := range s.items {
		if it.LineID == lineID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	snapshot := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(snapshot)
	return removed
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	snapshot := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(snapshot)
}

// Items returns the lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Total sums the unit prices of every line.
func (s *Store) Total() pricing.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total pricing.Money
	for _, it := range s.items {
		total += it.UnitPrice
	}
	return total
}

// Count returns the number of lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn to receive the cart contents after every mutation.
// The returned function cancels the subscription.
func (s *Store) Subscribe(fn func([]Item)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// nextLineIDLocked derives identifiers from the clock in milliseconds, bumping
// past the previous one when the clock has not advanced.
func (s *Store) nextLineIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastLine {
		id = s.lastLine + 1
	}
	s.lastLine = id
	return id
}

func (s *Store) commitLocked(ctx context.Context) []Item {
	snapshot := s.snapshotLocked()
	if err := localstore.SetJSON(ctx, s.storage, localstore.KeyCart, snapshot); err != nil {
		obs.CountCartStorageFailure("persist")
		s.logger.Warn().Err(err).Str("key", localstore.KeyCart).Msg("cart_persist_failed")
	}
	return snapshot
}

func (s *Store) snapshotLocked() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) notify(snapshot []Item) {
	s.mu.Lock()
	fns := make([]func([]Item), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}
