package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hashauth/config"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS product_registrations (
	request_id         TEXT PRIMARY KEY,
	product            JSONB NOT NULL,
	status             TEXT NOT NULL,
	received_timestamp TIMESTAMPTZ NOT NULL,
	retry_count        INTEGER NOT NULL DEFAULT 0,
	error_message      TEXT NOT NULL DEFAULT '',
	tx_hash            TEXT NOT NULL DEFAULT '',
	block_height       BIGINT NOT NULL DEFAULT 0,
	registered_hash    TEXT NOT NULL DEFAULT '',
	registered_at      BIGINT NOT NULL DEFAULT 0,
	completed_at       TIMESTAMPTZ,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_product_registrations_status ON product_registrations (status);
`

const selectRegistrationSQL = `
SELECT request_id, product, status, received_timestamp, retry_count, error_message,
       tx_hash, block_height, registered_hash, registered_at, completed_at, updated_at
FROM product_registrations
WHERE request_id = $1`

// PostgresStore implements Store on PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects the pool and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.LogConfiguration(logger)
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = int32(cfg.MinConnections)
	}
	if d, err := time.ParseDuration(cfg.MaxIdleTime); err == nil {
		poolCfg.MaxConnIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.MaxLifetime); err == nil {
		poolCfg.MaxConnLifetime = d
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Database store initialized",
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Int32("min_conns", poolCfg.MinConns))
	return s, nil
}

// EnsureSchema creates the registration table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertRegistrationBatch bulk-inserts new requests with COPY.
func (s *PostgresStore) InsertRegistrationBatch(ctx context.Context, regs []*Registration) error {
	if len(regs) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(regs))
	for _, r := range regs {
		product, err := json.Marshal(r.Product)
		if err != nil {
			return fmt.Errorf("failed to serialize product (RequestID: %s): %w", r.RequestID, err)
		}
		rows = append(rows, []interface{}{r.RequestID, string(product), string(StatusReceived), r.ReceivedTimestamp, time.Now()})
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"product_registrations"},
		[]string{"request_id", "product", "status", "received_timestamp", "updated_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to insert registration batch: %w", err)
	}
	if int(n) != len(regs) {
		return fmt.Errorf("inserted %d of %d registrations", n, len(regs))
	}
	return nil
}

func (s *PostgresStore) GetAndMarkAsProcessing(ctx context.Context, requestID string, maxRetries int) (*Registration, error) {
	var reg *Registration
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		reg, err = scanRegistration(tx.QueryRow(ctx, selectRegistrationSQL+" FOR UPDATE", requestID))
		if err != nil {
			return err
		}
		if reg.Status != StatusReceived && reg.Status != StatusProcessing {
			return nil
		}
		if reg.RetryCount >= maxRetries {
			reg.Status = StatusFailed
			reg.ErrorMessage = fmt.Sprintf("max retries (%d) exceeded: %s", maxRetries, reg.ErrorMessage)
		} else {
			reg.Status = StatusProcessing
		}
		_, err = tx.Exec(ctx,
			`UPDATE product_registrations SET status = $2, error_message = $3, updated_at = now() WHERE request_id = $1`,
			requestID, string(reg.Status), reg.ErrorMessage)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to claim registration %s: %w", requestID, err)
	}
	return reg, nil
}

func (s *PostgresStore) MarkAsCompleted(ctx context.Context, rec CompletionRecord) error {
	return s.exec(ctx, "complete", rec.RequestID, `
UPDATE product_registrations
SET status = $2, tx_hash = $3, block_height = $4, registered_hash = $5, registered_at = $6,
    error_message = '', completed_at = now(), updated_at = now()
WHERE request_id = $1`,
		rec.RequestID, string(StatusCompleted), rec.TxHash, int64(rec.BlockHeight), rec.RegisteredHash, rec.RegisteredAt)
}

func (s *PostgresStore) MarkForRetry(ctx context.Context, requestID, errMsg string) error {
	return s.exec(ctx, "retry", requestID, `
UPDATE product_registrations
SET status = $2, retry_count = retry_count + 1, error_message = $3, updated_at = now()
WHERE request_id = $1`,
		requestID, string(StatusReceived), errMsg)
}

func (s *PostgresStore) MarkAsFailed(ctx context.Context, requestID, errMsg string) error {
	return s.exec(ctx, "fail", requestID, `
UPDATE product_registrations
SET status = $2, error_message = $3, updated_at = now()
WHERE request_id = $1`,
		requestID, string(StatusFailed), errMsg)
}

func (s *PostgresStore) exec(ctx context.Context, op, requestID, sql string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to %s registration %s: %w", op, requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetRegistration(ctx context.Context, requestID string) (*Registration, error) {
	reg, err := scanRegistration(s.pool.QueryRow(ctx, selectRegistrationSQL, requestID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load registration %s: %w", requestID, err)
	}
	return reg, err
}

func scanRegistration(row pgx.Row) (*Registration, error) {
	var (
		reg         Registration
		product     []byte
		status      string
		blockHeight int64
	)
	err := row.Scan(&reg.RequestID, &product, &status, &reg.ReceivedTimestamp, &reg.RetryCount, &reg.ErrorMessage,
		&reg.TxHash, &blockHeight, &reg.RegisteredHash, &reg.RegisteredAt, &reg.CompletedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(product, &reg.Product); err != nil {
		return nil, fmt.Errorf("stored product of %s is corrupt: %w", reg.RequestID, err)
	}
	reg.Status = Status(status)
	reg.BlockHeight = uint64(blockHeight)
	return &reg, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.logger.Info("Closing database connection pool...")
	s.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
