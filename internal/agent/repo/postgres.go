package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

// PostgresStore keeps records in PostgreSQL tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore takes ownership of pool and creates the schema if needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_items (
			name_key TEXT PRIMARY KEY,
			position SERIAL,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL CHECK (quantity >= 0),
			price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			description TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS carts (
			session_id TEXT PRIMARY KEY,
			customer_phone TEXT NOT NULL DEFAULT '',
			items JSONB NOT NULL,
			total NUMERIC(12,2) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS customers (
			phone TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			street TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			zip TEXT NOT NULL DEFAULT '',
			last_order_date TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer_phone TEXT NOT NULL,
			items JSONB NOT NULL,
			total NUMERIC(12,2) NOT NULL,
			status TEXT NOT NULL,
			order_date TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_session ON conversation_turns (session_id, id);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// SeedCatalog upserts items, leaving rows not in items untouched.
func (s *PostgresStore) SeedCatalog(ctx context.Context, items []model.CatalogItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO catalog_items (name_key, name, category, quantity, price, description, tags)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
			 ON CONFLICT (name_key) DO UPDATE SET
			   name = EXCLUDED.name, category = EXCLUDED.category, quantity = EXCLUDED.quantity,
			   price = EXCLUDED.price, description = EXCLUDED.description, tags = EXCLUDED.tags`,
			it.Key(), it.Name, it.Category, it.Quantity, it.Price.String(), it.Description, it.Tags,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		logx.Error().Err(err).Int("items", len(items)).Msg("failed to seed catalog in postgres")
		return errx.WrapPostgres(err)
	}
	return nil
}

func (s *PostgresStore) LoadCatalog(ctx context.Context) ([]model.CatalogItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, category, quantity, price::text, description, tags
		 FROM catalog_items ORDER BY position`)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	var items []model.CatalogItem
	for rows.Next() {
		var (
			it    model.CatalogItem
			price string
		)
		if err := rows.Scan(&it.Name, &it.Category, &it.Quantity, &price, &it.Description, &it.Tags); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("catalog item %q price: %w", it.Name, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DecrementStock(ctx context.Context, itemName string, amount int) (int, error) {
	var removed int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var cur int
		err := tx.QueryRow(ctx,
			`SELECT quantity FROM catalog_items WHERE name_key = $1 FOR UPDATE`,
			model.NameKey(itemName)).Scan(&cur)
		if err != nil {
			return err
		}
		next := max(cur-amount, 0)
		if _, err := tx.Exec(ctx,
			`UPDATE catalog_items SET quantity = $2 WHERE name_key = $1`,
			model.NameKey(itemName), next); err != nil {
			return err
		}
		removed = cur - next
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("decrement stock: unknown item %q", itemName)
	}
	if err != nil {
		logx.Error().Err(err).Str("item", itemName).Msg("failed to decrement stock in postgres")
		return 0, errx.WrapPostgres(err)
	}
	return removed, nil
}

func (s *PostgresStore) LoadCart(ctx context.Context, sessionID string) (*model.Cart, error) {
	var (
		c     model.Cart
		items []byte
		total string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, customer_phone, items, total::text, updated_at FROM carts WHERE session_id = $1`,
		sessionID,
	).Scan(&c.SessionID, &c.CustomerPhone, &items, &total, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errx.WrapPostgres(err)
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart %q: %w", sessionID, err)
	}
	if c.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("cart %q total: %w", sessionID, err)
	}
	return &c, nil
}

func (s *PostgresStore) SaveCart(ctx context.Context, sessionID string, cart *model.Cart) error {
	items, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("marshal cart %q: %w", sessionID, err)
	}
	updated := cart.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO carts (session_id, customer_phone, items, total, updated_at)
		 VALUES ($1, $2, $3, $4::numeric, $5)
		 ON CONFLICT (session_id) DO UPDATE SET
		   customer_phone = EXCLUDED.customer_phone, items = EXCLUDED.items,
		   total = EXCLUDED.total, updated_at = EXCLUDED.updated_at`,
		sessionID, cart.CustomerPhone, items, cart.Total.String(), updated)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to save cart to postgres")
		return errx.WrapPostgres(err)
	}
	return nil
}

func (s *PostgresStore) DeleteCart(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE session_id = $1`, sessionID); err != nil {
		return errx.WrapPostgres(err)
	}
	return nil
}

func (s *PostgresStore) UpsertCustomer(ctx context.Context, p model.CustomerProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (phone, name, street, city, state, zip, last_order_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (phone) DO UPDATE SET
		   name = EXCLUDED.name, street = EXCLUDED.street, city = EXCLUDED.city,
		   state = EXCLUDED.state, zip = EXCLUDED.zip, last_order_date = EXCLUDED.last_order_date`,
		p.Phone, p.Name, p.Address.Street, p.Address.City, p.Address.State, p.Address.Zip, p.LastOrderDate)
	if err != nil {
		logx.Error().Err(err).Msg("failed to upsert customer in postgres")
		return errx.WrapPostgres(err)
	}
	return nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, phone string) (*model.CustomerProfile, error) {
	var p model.CustomerProfile
	err := s.pool.QueryRow(ctx,
		`SELECT phone, name, street, city, state, zip, last_order_date FROM customers WHERE phone = $1`,
		phone,
	).Scan(&p.Phone, &p.Name, &p.Address.Street, &p.Address.City, &p.Address.State, &p.Address.Zip, &p.LastOrderDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errx.WrapPostgres(err)
	}
	return &p, nil
}

func (s *PostgresStore) AppendOrder(ctx context.Context, o model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, customer_phone, items, total, status, order_date, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		o.ID, o.CustomerPhone, o.ItemsJSON, o.Total.String(), o.Status, o.Date, o.CreatedAt)
	if err != nil {
		logx.Error().Err(err).Str("order_id", o.ID).Msg("failed to append order to postgres")
		return errx.WrapPostgres(err)
	}
	return nil
}

func (s *PostgresStore) AddTurn(ctx context.Context, sessionID string, turn model.Turn, maxTurns int) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_turns (session_id, role, text, created_at) VALUES ($1, $2, $3, $4)`,
			sessionID, string(turn.Role), turn.Text, ts); err != nil {
			return errx.WrapPostgres(err)
		}
		if maxTurns <= 0 {
			return nil
		}
		_, err := tx.Exec(ctx,
			`DELETE FROM conversation_turns WHERE session_id = $1 AND id NOT IN (
			   SELECT id FROM conversation_turns WHERE session_id = $1 ORDER BY id DESC LIMIT $2)`,
			sessionID, maxTurns)
		return errx.WrapPostgres(err)
	})
}

func (s *PostgresStore) LoadTurns(ctx context.Context, sessionID string) ([]model.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, text, created_at FROM conversation_turns WHERE session_id = $1 ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	turns := []model.Turn{}
	for rows.Next() {
		var (
			t    model.Turn
			role string
		)
		if err := rows.Scan(&role, &t.Text, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = model.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) ClearTurns(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversation_turns WHERE session_id = $1`, sessionID); err != nil {
		return errx.WrapPostgres(err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var (
	_ model.RecordStore          = (*PostgresStore)(nil)
	_ model.TranscriptRepository = (*PostgresStore)(nil)
)
