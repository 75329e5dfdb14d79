package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

const stockLockExpiry = 5 * time.Second

type RedisStore struct {
	rdb           redis.UniversalClient
	rs            *redsync.Redsync
	prefix        string
	cartTTL       time.Duration
	transcriptTTL time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, prefix string, cartTTL, transcriptTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "grocery"
	}
	return &RedisStore{
		rdb:           rdb,
		rs:            redsync.New(goredis.NewPool(rdb)),
		prefix:        prefix,
		cartTTL:       cartTTL,
		transcriptTTL: transcriptTTL,
	}
}

func (r *RedisStore) catalogKey() string      { return r.prefix + ":catalog:items" }
func (r *RedisStore) catalogOrderKey() string { return r.prefix + ":catalog:order" }
func (r *RedisStore) ordersKey() string       { return r.prefix + ":orders" }

func (r *RedisStore) cartKey(sessionID string) string {
	return fmt.Sprintf("%s:cart:%s", r.prefix, sessionID)
}

func (r *RedisStore) customerKey(phone string) string {
	return fmt.Sprintf("%s:customer:%s", r.prefix, phone)
}

func (r *RedisStore) stockLockKey(nameKey string) string {
	return fmt.Sprintf("%s:lock:stock:%s", r.prefix, nameKey)
}

func (r *RedisStore) transcriptKey(sessionID string) string {
	return fmt.Sprintf("%s:conversation:%s:turns", r.prefix, sessionID)
}

// SeedCatalog replaces the stored catalog with items, keeping their order.
func (r *RedisStore) SeedCatalog(ctx context.Context, items []model.CatalogItem) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.catalogKey(), r.catalogOrderKey())
		for _, it := range items {
			b, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("marshal catalog item %q: %w", it.Name, err)
			}
			p.HSet(ctx, r.catalogKey(), it.Key(), b)
			p.RPush(ctx, r.catalogOrderKey(), it.Key())
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Int("items", len(items)).Msg("failed to seed catalog in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) LoadCatalog(ctx context.Context) ([]model.CatalogItem, error) {
	keys, err := r.rdb.LRange(ctx, r.catalogOrderKey(), 0, -1).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", r.catalogOrderKey()).Msg("failed to load catalog order from redis")
		return nil, errx.WrapRedis(err)
	}
	rows, err := r.rdb.HGetAll(ctx, r.catalogKey()).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", r.catalogKey()).Msg("failed to load catalog from redis")
		return nil, errx.WrapRedis(err)
	}

	items := make([]model.CatalogItem, 0, len(keys))
	for _, k := range keys {
		raw, ok := rows[k]
		if !ok {
			continue
		}
		var it model.CatalogItem
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("unmarshal catalog item %q: %w", k, err)
		}
		if err := it.Validate(); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// DecrementStock rewrites the item under a distributed lock so concurrent
// finalizers on other replicas cannot lose updates.
func (r *RedisStore) DecrementStock(ctx context.Context, itemName string, amount int) (int, error) {
	key := model.NameKey(itemName)
	mutex := r.rs.NewMutex(r.stockLockKey(key), redsync.WithExpiry(stockLockExpiry))
	if err := mutex.LockContext(ctx); err != nil {
		return 0, fmt.Errorf("lock stock %q: %w", itemName, err)
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			logx.Error().Err(err).Str("item", itemName).Msg("failed to unlock stock mutex")
		}
	}()

	raw, err := r.rdb.HGet(ctx, r.catalogKey(), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("decrement stock: unknown item %q", itemName)
		}
		return 0, errx.WrapRedis(err)
	}
	var it model.CatalogItem
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return 0, fmt.Errorf("unmarshal catalog item %q: %w", key, err)
	}
	cur := it.Quantity
	it.Quantity = max(cur-amount, 0)
	b, err := json.Marshal(it)
	if err != nil {
		return 0, fmt.Errorf("marshal catalog item %q: %w", key, err)
	}
	if err := r.rdb.HSet(ctx, r.catalogKey(), key, b).Err(); err != nil {
		logx.Error().Err(err).Str("item", itemName).Msg("failed to write stock to redis")
		return 0, errx.WrapRedis(err)
	}
	return cur - it.Quantity, nil
}

func (r *RedisStore) LoadCart(ctx context.Context, sessionID string) (*model.Cart, error) {
	key := r.cartKey(sessionID)
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load cart from redis")
		return nil, errx.WrapRedis(err)
	}
	var c model.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart %q: %w", sessionID, err)
	}
	return &c, nil
}

func (r *RedisStore) SaveCart(ctx context.Context, sessionID string, cart *model.Cart) error {
	b, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart %q: %w", sessionID, err)
	}
	key := r.cartKey(sessionID)
	if err := r.rdb.Set(ctx, key, b, r.cartTTL).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save cart to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) DeleteCart(ctx context.Context, sessionID string) error {
	key := r.cartKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete cart from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) UpsertCustomer(ctx context.Context, p model.CustomerProfile) error {
	key := r.customerKey(p.Phone)
	err := r.rdb.HSet(ctx, key,
		"phone", p.Phone,
		"name", p.Name,
		"street", p.Address.Street,
		"city", p.Address.City,
		"state", p.Address.State,
		"zip", p.Address.Zip,
		"last_order_date", p.LastOrderDate,
	).Err()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to upsert customer in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) GetCustomer(ctx context.Context, phone string) (*model.CustomerProfile, error) {
	key := r.customerKey(phone)
	f, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load customer from redis")
		return nil, errx.WrapRedis(err)
	}
	if len(f) == 0 {
		return nil, nil
	}
	return &model.CustomerProfile{
		Phone: f["phone"],
		Name:  f["name"],
		Address: model.Address{
			Street: f["street"],
			City:   f["city"],
			State:  f["state"],
			Zip:    f["zip"],
		},
		LastOrderDate: f["last_order_date"],
	}, nil
}

func (r *RedisStore) AppendOrder(ctx context.Context, order model.Order) error {
	b, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}
	if err := r.rdb.RPush(ctx, r.ordersKey(), b).Err(); err != nil {
		logx.Error().Err(err).Str("order_id", order.ID).Msg("failed to append order to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// Orders returns the order log, oldest first.
func (r *RedisStore) Orders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.rdb.LRange(ctx, r.ordersKey(), 0, -1).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	out := make([]model.Order, 0, len(rows))
	for i, s := range rows {
		var o model.Order
		if err := json.Unmarshal([]byte(s), &o); err != nil {
			return nil, fmt.Errorf("unmarshal order at index %d: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *RedisStore) AddTurn(ctx context.Context, sessionID string, turn model.Turn, maxTurns int) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := r.transcriptKey(sessionID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	if maxTurns > 0 {
		if err := r.rdb.LTrim(ctx, key, int64(-maxTurns), -1).Err(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to trim transcript")
			return errx.WrapRedis(err)
		}
	}
	// extend TTL on touch
	if r.transcriptTTL > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.transcriptTTL).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.transcriptTTL).Msg("failed to set TTL on transcript key")
		}
	}
	return nil
}

func (r *RedisStore) LoadTurns(ctx context.Context, sessionID string) ([]model.Turn, error) {
	key := r.transcriptKey(sessionID)
	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}
	turns := make([]model.Turn, 0, len(rows))
	for i, s := range rows {
		var t model.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("sessionID", sessionID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *RedisStore) ClearTurns(ctx context.Context, sessionID string) error {
	key := r.transcriptKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete transcript from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

var (
	_ model.RecordStore          = (*RedisStore)(nil)
	_ model.TranscriptRepository = (*RedisStore)(nil)
)
