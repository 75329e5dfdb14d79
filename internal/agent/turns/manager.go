// Package turns runs conversational turns in the background and hands out
// tickets the transport can poll.
package turns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

// Status is the lifecycle status of a ticket.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true once the ticket will not change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrEmptyText   = errors.New("turn text is empty")
	ErrEmptyCallID = errors.New("call id is empty")
	ErrClosed      = errors.New("turn manager is closed")
)

// Turner runs one turn to completion.
type Turner interface {
	Invoke(ctx context.Context, in model.QueryInput) (model.TurnResult, error)
}

// Ticket is a snapshot of one submitted turn.
type Ticket struct {
	ID        string            `json:"ticket_id"`
	CallID    string            `json:"call_id"`
	Status    Status            `json:"status"`
	Result    *model.TurnResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Options struct {
	Workers int
	Timeout time.Duration
	TTL     time.Duration
	Metrics *observability.Metrics
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 16
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
}

// OptionsFromConfig parses the env config, keeping defaults for blank or
// invalid durations.
func OptionsFromConfig(cfg model.TurnConfig, metrics *observability.Metrics) Options {
	opts := Options{Workers: cfg.Workers, Metrics: metrics}
	if d, err := time.ParseDuration(cfg.Timeout); err == nil {
		opts.Timeout = d
	}
	if d, err := time.ParseDuration(cfg.TicketTTL); err == nil {
		opts.TTL = d
	}
	return opts
}

// Manager owns the tickets. Turns run on the manager's base context, not the
// submitting request's, bounded by a worker limit and a per-turn timeout.
type Manager struct {
	turner Turner
	opts   Options
	base   context.Context
	sem    *semaphore.Weighted

	mu      sync.RWMutex
	tickets map[string]*Ticket
	closed  bool
	wg      sync.WaitGroup

	now func() time.Time
}

func NewManager(base context.Context, turner Turner, opts Options) *Manager {
	opts.defaults()
	return &Manager{
		turner:  turner,
		opts:    opts,
		base:    base,
		sem:     semaphore.NewWeighted(int64(opts.Workers)),
		tickets: make(map[string]*Ticket),
		now:     time.Now,
	}
}

// Submit queues a turn and returns its pending ticket.
func (m *Manager) Submit(callID, text string) (Ticket, error) {
	callID, text = strings.TrimSpace(callID), strings.TrimSpace(text)
	if callID == "" {
		return Ticket{}, ErrEmptyCallID
	}
	if text == "" {
		return Ticket{}, ErrEmptyText
	}

	now := m.now().UTC()
	t := &Ticket{
		ID:        uuid.NewString(),
		CallID:    callID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Ticket{}, ErrClosed
	}
	m.tickets[t.ID] = t
	m.wg.Add(1)
	snap := *t
	m.mu.Unlock()

	go m.run(t.ID, model.QueryInput{ConversationID: callID, Query: text})
	logx.Debug().Str("ticketID", t.ID).Str("callID", callID).Msg("turn submitted")
	return snap, nil
}

func (m *Manager) run(id string, in model.QueryInput) {
	defer m.wg.Done()

	if err := m.sem.Acquire(m.base, 1); err != nil {
		m.finish(id, nil, fmt.Errorf("waiting for a worker: %w", err))
		return
	}
	defer m.sem.Release(1)

	m.update(id, func(t *Ticket) { t.Status = StatusInProgress })

	ctx, cancel := context.WithTimeout(m.base, m.opts.Timeout)
	defer cancel()

	res, err := m.turner.Invoke(ctx, in)
	if err != nil {
		m.finish(id, nil, err)
		return
	}
	m.finish(id, &res, nil)
}

func (m *Manager) finish(id string, res *model.TurnResult, err error) {
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		logx.Error().Err(err).Str("ticketID", id).Msg("turn failed")
	}
	m.update(id, func(t *Ticket) {
		t.Status = status
		t.Result = res
		if err != nil {
			t.Error = err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				t.Error = "turn timed out"
			}
		}
	})

	label := string(status)
	if errors.Is(err, context.DeadlineExceeded) {
		label = "timeout"
	}
	m.opts.Metrics.TicketFinished(label)
}

func (m *Manager) update(id string, fn func(t *Ticket)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return
	}
	fn(t)
	t.UpdatedAt = m.now().UTC()
}

// Get returns a snapshot of the ticket.
func (m *Manager) Get(id string) (Ticket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

// Len is the number of tickets held.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tickets)
}

// StartJanitor drops finished tickets older than the TTL until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.sweep(m.now()); n > 0 {
					logx.Debug().Int("removed", n).Msg("expired turn tickets removed")
				}
			}
		}
	}()
}

func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.tickets {
		if t.Status.IsTerminal() && now.Sub(t.UpdatedAt) > m.opts.TTL {
			delete(m.tickets, id)
			n++
		}
	}
	return n
}

// Close stops accepting turns and waits for running ones or ctx.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
