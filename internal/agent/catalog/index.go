package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

// ErrStaleCatalog is returned by Reload when the source failed and the
// previously loaded snapshot keeps serving.
var ErrStaleCatalog = errors.New("catalog reload failed, serving cached snapshot")

const (
	SourceStore    = "store"
	SourceFallback = "fallback"
)

// Source supplies the full catalog.
type Source interface {
	LoadCatalog(ctx context.Context) ([]model.CatalogItem, error)
}

type Options struct {
	MatchThreshold float64
	SearchFloor    float64
	MaxResults     int
	CategoryTopK   int
	// Fallback is served when the source fails before any snapshot exists.
	Fallback []model.CatalogItem
	Metrics  *observability.Metrics
}

func OptionsFromConfig(cfg model.CatalogConfig) Options {
	return Options{
		MatchThreshold: cfg.MatchThreshold,
		SearchFloor:    cfg.SearchFloor,
		MaxResults:     cfg.MaxResults,
		CategoryTopK:   cfg.CategoryTopK,
	}
}

func (o *Options) defaults() {
	if o.MatchThreshold <= 0 {
		o.MatchThreshold = 0.3
	}
	if o.SearchFloor <= 0 {
		o.SearchFloor = 0.1
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 10
	}
	if o.CategoryTopK <= 0 {
		o.CategoryTopK = 5
	}
}

// snapshot is an immutable view of one catalog load.
type snapshot struct {
	items      []model.CatalogItem
	byKey      map[string]int
	scorer     Scorer
	categories []string
	aliases    map[string]string
	source     string
	loadedAt   time.Time
}

// Index is the shared catalog. Reads go through an atomically swapped
// snapshot; stock counters are guarded by stockMu and outlive reloads.
type Index struct {
	src     Source
	matcher Matcher
	opts    Options

	snap atomic.Pointer[snapshot]
	sf   singleflight.Group

	stockMu  sync.Mutex
	onHand   map[string]int
	reserved map[string]int
}

func NewIndex(src Source, matcher Matcher, opts Options) *Index {
	opts.defaults()
	if matcher == nil {
		matcher = NewLexicalMatcher()
	}
	x := &Index{
		src:      src,
		matcher:  matcher,
		opts:     opts,
		onHand:   make(map[string]int),
		reserved: make(map[string]int),
	}
	x.snap.Store(&snapshot{byKey: map[string]int{}, scorer: buildLexical(nil), aliases: map[string]string{}})
	return x
}

// Loaded reports whether any catalog, store or fallback, has been loaded.
func (x *Index) Loaded() bool {
	return x.snap.Load().source != ""
}

// Source names where the active snapshot came from.
func (x *Index) Source() string {
	return x.snap.Load().source
}

func (x *Index) LoadedAt() time.Time {
	return x.snap.Load().loadedAt
}

// Reload reads the full catalog and swaps it in atomically. Concurrent calls
// share one load, which is not cut short when the first caller goes away.
func (x *Index) Reload(ctx context.Context) error {
	shared := context.WithoutCancel(ctx)
	_, err, _ := x.sf.Do("reload", func() (any, error) {
		return nil, x.reload(shared)
	})
	return err
}

func (x *Index) reload(ctx context.Context) error {
	source := SourceStore
	items, err := x.src.LoadCatalog(ctx)
	if err != nil {
		switch {
		case x.Loaded():
			logx.Warn().Err(err).Str("source", x.Source()).Msg("catalog reload failed, keeping cached snapshot")
			x.opts.Metrics.CatalogReloaded("stale", -1)
			return fmt.Errorf("%w: %v", ErrStaleCatalog, err)
		case len(x.opts.Fallback) > 0:
			logx.Warn().Err(err).Int("items", len(x.opts.Fallback)).Msg("catalog load failed, serving fallback catalog")
			items, source = x.opts.Fallback, SourceFallback
		default:
			x.opts.Metrics.CatalogReloaded("error", -1)
			return fmt.Errorf("load catalog: %w", err)
		}
	}

	snap, err := x.build(ctx, items, source)
	if err != nil {
		x.opts.Metrics.CatalogReloaded("error", -1)
		return err
	}

	x.stockMu.Lock()
	onHand := make(map[string]int, len(snap.items))
	for _, it := range snap.items {
		onHand[it.Key()] = it.Quantity
	}
	x.onHand = onHand
	x.snap.Store(snap)
	x.stockMu.Unlock()

	x.opts.Metrics.CatalogReloaded(source, len(snap.items))
	logx.Info().Str("source", source).Str("matcher", x.matcher.Name()).Int("items", len(snap.items)).Msg("catalog loaded")
	return nil
}

func (x *Index) build(ctx context.Context, raw []model.CatalogItem, source string) (*snapshot, error) {
	items := make([]model.CatalogItem, 0, len(raw))
	byKey := make(map[string]int, len(raw))
	for _, it := range raw {
		if err := it.Validate(); err != nil {
			logx.Warn().Err(err).Msg("skipping invalid catalog item")
			continue
		}
		if _, dup := byKey[it.Key()]; dup {
			logx.Warn().Str("item", it.Name).Msg("skipping duplicate catalog item")
			continue
		}
		byKey[it.Key()] = len(items)
		items = append(items, it)
	}

	scorer, err := x.matcher.Build(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("build %s matcher: %w", x.matcher.Name(), err)
	}

	cats := categoriesOf(items)
	return &snapshot{
		items:      items,
		byKey:      byKey,
		scorer:     scorer,
		categories: cats,
		aliases:    categoryAliases(cats),
		source:     source,
		loadedAt:   time.Now().UTC(),
	}, nil
}

// StartReloader refreshes the catalog every interval until ctx is done.
func (x *Index) StartReloader(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := x.Reload(ctx); err != nil && !errors.Is(err, ErrStaleCatalog) {
					logx.Error().Err(err).Msg("periodic catalog reload failed")
				}
			}
		}
	}()
}

// Items returns the catalog with quantities showing what is still available.
func (x *Index) Items() []model.CatalogItem {
	snap := x.snap.Load()
	out := make([]model.CatalogItem, len(snap.items))
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	for i, it := range snap.items {
		out[i] = x.viewLocked(it)
	}
	return out
}

// ================ Stock ================

// Available is on-hand minus reserved stock, zero for unknown items.
func (x *Index) Available(name string) int {
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	return x.availableLocked(model.NameKey(name))
}

func (x *Index) availableLocked(key string) int {
	return max(x.onHand[key]-x.reserved[key], 0)
}

func (x *Index) viewLocked(it model.CatalogItem) model.CatalogItem {
	it.Quantity = x.availableLocked(it.Key())
	return it
}

// Reserve holds n units for a cart. It fails with InsufficientStock when
// fewer than n are available.
func (x *Index) Reserve(name string, n int) error {
	if n <= 0 {
		return nil
	}
	key := model.NameKey(name)
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	if avail := x.availableLocked(key); n > avail {
		return errx.InsufficientStock(name, avail)
	}
	x.reserved[key] += n
	return nil
}

// ForceReserve holds n units even past what is available. Restored carts use
// it so a cart persisted before a restock cannot lose lines.
func (x *Index) ForceReserve(name string, n int) {
	if n <= 0 {
		return
	}
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	x.reserved[model.NameKey(name)] += n
}

// Release returns up to n reserved units.
func (x *Index) Release(name string, n int) {
	if n <= 0 {
		return
	}
	key := model.NameKey(name)
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	x.releaseLocked(key, n)
}

func (x *Index) releaseLocked(key string, n int) {
	left := x.reserved[key] - n
	if left <= 0 {
		delete(x.reserved, key)
		return
	}
	x.reserved[key] = left
}

// Commit turns n reserved units into sold ones. It reports false for items
// not in the catalog.
func (x *Index) Commit(name string, n int) bool {
	key := model.NameKey(name)
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	if _, ok := x.snap.Load().byKey[key]; !ok {
		return false
	}
	x.onHand[key] = max(x.onHand[key]-n, 0)
	x.releaseLocked(key, n)
	return true
}

// Uncommit reverses Commit, putting n units back on hand and on reserve.
func (x *Index) Uncommit(name string, n int) {
	if n <= 0 {
		return
	}
	key := model.NameKey(name)
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	x.onHand[key] += n
	x.reserved[key] += n
}
