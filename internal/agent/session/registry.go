package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

var ErrEmptySessionID = errors.New("empty session id")

// StockKeeper holds and returns catalog stock on behalf of carts.
type StockKeeper interface {
	ForceReserve(name string, n int)
	Release(name string, n int)
}

// CartLoader is the slice of the record store a session restores from.
type CartLoader interface {
	LoadCart(ctx context.Context, sessionID string) (*model.Cart, error)
}

// Session is the state of one call. Its fields are only touched while the
// registry holds the session lock, see Registry.With.
type Session struct {
	mu sync.Mutex

	id         string
	cart       *model.Cart
	transcript *Transcript
	customer   model.CustomerData
	lastSeen   time.Time
	evicted    bool
}

func (s *Session) ID() string { return s.id }

// Cart is the committed cart. Mutators clone it and hand the result to SetCart.
func (s *Session) Cart() *model.Cart { return s.cart }

func (s *Session) SetCart(c *model.Cart) { s.cart = c }

// Customer is the scratchpad of caller details gathered so far.
func (s *Session) Customer() model.CustomerData { return s.customer }

func (s *Session) SetCustomer(c model.CustomerData) { s.customer = c }

func (s *Session) Transcript() *Transcript { return s.transcript }

type Options struct {
	TranscriptCapacity int
	ContextWindow      int
	IdleTimeout        time.Duration
	Metrics            *observability.Metrics
}

func (o *Options) defaults() {
	if o.TranscriptCapacity <= 0 {
		o.TranscriptCapacity = 10
	}
	if o.ContextWindow <= 0 {
		o.ContextWindow = 5
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
}

// Registry maps call ids to sessions. The map has its own lock; each session
// carries its own, so calls never block each other. Restores run outside the
// map lock, one per id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	restores singleflight.Group

	stock   StockKeeper
	carts   CartLoader
	archive model.TranscriptRepository
	opts    Options
}

// NewRegistry wires the registry. archive may be nil.
func NewRegistry(stock StockKeeper, carts CartLoader, archive model.TranscriptRepository, opts Options) *Registry {
	opts.defaults()
	return &Registry{
		sessions: make(map[string]*Session),
		stock:    stock,
		carts:    carts,
		archive:  archive,
		opts:     opts,
	}
}

// GetOrCreate returns the live session for id, restoring a persisted cart
// and transcript the first time the id is seen.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptySessionID
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, _, _ := r.restores.Do(id, func() (any, error) {
		r.mu.RLock()
		live, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			return live, nil
		}

		s := r.restore(context.WithoutCancel(ctx), id)
		r.mu.Lock()
		r.sessions[id] = s
		r.mu.Unlock()
		r.opts.Metrics.SessionOpened()
		return s, nil
	})
	return v.(*Session), nil
}

func (r *Registry) restore(ctx context.Context, id string) *Session {
	s := &Session{
		id:         id,
		cart:       model.NewCart(id, ""),
		transcript: NewTranscript(r.opts.TranscriptCapacity),
		lastSeen:   time.Now(),
	}

	if r.carts != nil {
		stored, err := r.carts.LoadCart(ctx, id)
		switch {
		case err != nil:
			logx.Warn().Err(err).Str("sessionID", id).Msg("failed to load persisted cart, starting empty")
			r.opts.Metrics.StoreError("load_cart")
		case stored != nil:
			cart, bad := model.RestoreCart(id, stored.CustomerPhone, stored.Items)
			for _, e := range bad {
				logx.Warn().Err(e).Str("sessionID", id).Msg("dropping invalid persisted cart line")
			}
			for _, l := range cart.Items {
				r.stock.ForceReserve(l.Name, l.Quantity)
			}
			s.cart = cart
			s.customer.Phone = cart.CustomerPhone
			r.opts.Metrics.SessionRestored()
			logx.Info().Str("sessionID", id).Int("lines", len(cart.Items)).Msg("restored persisted cart")
		}
	}

	if r.archive != nil {
		turns, err := r.archive.LoadTurns(ctx, id)
		if err != nil {
			logx.Warn().Err(err).Str("sessionID", id).Msg("failed to load archived transcript")
		}
		for _, t := range turns {
			s.transcript.Append(t)
		}
	}
	return s
}

// With runs fn while holding the session lock.
func (r *Registry) With(ctx context.Context, id string, fn func(s *Session) error) error {
	for {
		s, err := r.GetOrCreate(ctx, id)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.evicted {
			// the janitor won the race; fetch a fresh session
			s.mu.Unlock()
			continue
		}
		s.lastSeen = time.Now()
		err = fn(s)
		s.mu.Unlock()
		return err
	}
}

// AppendTurn records a turn and mirrors it to the archive best-effort.
func (r *Registry) AppendTurn(ctx context.Context, id string, role model.Role, text string) error {
	turn := model.Turn{Role: role, Text: text, Timestamp: time.Now().UTC()}
	err := r.With(ctx, id, func(s *Session) error {
		s.transcript.Append(turn)
		return nil
	})
	if err != nil {
		return err
	}
	if r.archive != nil {
		if err := r.archive.AddTurn(ctx, id, turn, r.opts.TranscriptCapacity); err != nil {
			logx.Warn().Err(err).Str("sessionID", id).Msg("failed to archive turn")
			r.opts.Metrics.StoreError("add_turn")
		}
	}
	return nil
}

// RecentContext returns up to window of the newest turns, oldest first. A
// window <= 0 uses the configured context window.
func (r *Registry) RecentContext(ctx context.Context, id string, window int) ([]model.Turn, error) {
	if window <= 0 {
		window = r.opts.ContextWindow
	}
	var out []model.Turn
	err := r.With(ctx, id, func(s *Session) error {
		out = s.transcript.Last(window)
		return nil
	})
	return out, err
}

func (r *Registry) Customer(ctx context.Context, id string) (model.CustomerData, error) {
	var c model.CustomerData
	err := r.With(ctx, id, func(s *Session) error {
		c = s.customer
		return nil
	})
	return c, err
}

// SetCustomer merges the non-empty fields of c into the scratchpad.
func (r *Registry) SetCustomer(ctx context.Context, id string, c model.CustomerData) error {
	return r.With(ctx, id, func(s *Session) error {
		cur := s.customer
		if c.Name != "" {
			cur.Name = c.Name
		}
		if c.Phone != "" {
			cur.Phone = c.Phone
		}
		if !c.Address.IsZero() {
			cur.Address = c.Address
		}
		s.customer = cur
		return nil
	})
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict drops a session, releasing the stock its cart holds. The persisted
// cart stays so a later call can restore it.
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	s.evicted = true
	lines := s.cart.Items
	s.mu.Unlock()
	for _, l := range lines {
		r.stock.Release(l.Name, l.Quantity)
	}
	r.opts.Metrics.SessionEvicted()
	return true
}

// End closes a finished call: the session is evicted and its archived
// transcript dropped. The persisted cart stays for a later call.
func (r *Registry) End(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrEmptySessionID
	}
	ended := r.Evict(id)
	if r.archive != nil {
		if err := r.archive.ClearTurns(ctx, id); err != nil {
			r.opts.Metrics.StoreError("clear_turns")
			return ended, err
		}
	}
	return ended, nil
}

// StartJanitor evicts sessions idle longer than the idle timeout.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.evictIdle(time.Now())
			}
		}
	}()
}

func (r *Registry) evictIdle(now time.Time) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if r.evictIfIdle(id, now) {
			n++
		}
	}
	if n > 0 {
		logx.Info().Int("evicted", n).Msg("evicted idle sessions")
	}
	return n
}

// evictIfIdle skips sessions that are busy right now; they are not idle.
func (r *Registry) evictIfIdle(id string, now time.Time) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || !s.mu.TryLock() {
		r.mu.Unlock()
		return false
	}
	if now.Sub(s.lastSeen) < r.opts.IdleTimeout {
		s.mu.Unlock()
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	s.evicted = true
	lines := s.cart.Items
	s.mu.Unlock()
	r.mu.Unlock()

	for _, l := range lines {
		r.stock.Release(l.Name, l.Quantity)
	}
	r.opts.Metrics.SessionEvicted()
	return true
}
