package firewall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists intercept records and list membership in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed intercept ledger.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables if they don't exist. The same DDL lives
// in migrations/ for goose-managed deployments.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS intercept_log (
			request_id    VARCHAR(64) PRIMARY KEY,
			ts            TIMESTAMPTZ NOT NULL,
			chain         VARCHAR(16) NOT NULL,
			from_address  TEXT,
			to_address    TEXT NOT NULL,
			amount        NUMERIC(20,6) NOT NULL CHECK (amount > 0),
			risk_score    INT NOT NULL CHECK (risk_score >= 0 AND risk_score <= 100),
			risk_level    VARCHAR(10) NOT NULL CHECK (risk_level IN ('LOW', 'MEDIUM', 'HIGH', 'BLOCKED')),
			decision      VARCHAR(16) NOT NULL CHECK (decision IN ('ALLOW', 'REQUIRE_CONFIRM', 'BLOCK')),
			reason_codes  TEXT[] NOT NULL DEFAULT '{}',
			forced        BOOLEAN NOT NULL DEFAULT FALSE,
			tx_hash       TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_intercept_log_ts
			ON intercept_log (ts DESC, request_id DESC);

		CREATE INDEX IF NOT EXISTS idx_intercept_log_blocks
			ON intercept_log (ts DESC) WHERE decision = 'BLOCK';

		CREATE TABLE IF NOT EXISTS list_store (
			kind     VARCHAR(10) NOT NULL CHECK (kind IN ('BLACKLIST', 'WHITELIST')),
			address  TEXT NOT NULL,
			PRIMARY KEY (kind, address)
		);
	`)
	return err
}

func (s *PostgresStore) Put(ctx context.Context, record *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intercept_log
			(request_id, ts, chain, from_address, to_address, amount,
			 risk_score, risk_level, decision, reason_codes, forced, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO UPDATE SET
			forced  = EXCLUDED.forced,
			tx_hash = EXCLUDED.tx_hash
	`,
		record.RequestID,
		record.Timestamp,
		string(record.Chain),
		nullIfEmpty(record.FromAddress),
		record.ToAddress,
		record.Amount,
		record.RiskScore,
		string(record.RiskLevel),
		string(record.Decision),
		pq.Array(record.ReasonCodes),
		record.Forced,
		nullIfEmpty(record.TxHash),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert intercept record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, ts, chain, from_address, to_address, amount,
		       risk_score, risk_level, decision, reason_codes, forced, tx_hash
		FROM intercept_log
		WHERE request_id = $1
	`, requestID)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intercept record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int, opts ...ListOption) ([]*Record, error) {
	o := applyListOpts(opts)

	query := `
		SELECT request_id, ts, chain, from_address, to_address, amount,
		       risk_score, risk_level, decision, reason_codes, forced, tx_hash
		FROM intercept_log`
	args := []any{}
	if o.cursor != nil {
		query += ` WHERE (ts, request_id) < ($1, $2)`
		args = append(args, o.cursor.CreatedAt, o.cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY ts DESC, request_id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list intercept records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intercept record: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func (s *PostgresStore) AddAddress(ctx context.Context, kind ListKind, address string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO list_store (kind, address)
		VALUES ($1, $2)
		ON CONFLICT (kind, address) DO NOTHING
	`, string(kind), address)
	if err != nil {
		return fmt.Errorf("failed to add list entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveAddress(ctx context.Context, kind ListKind, address string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM list_store WHERE kind = $1 AND address = $2
	`, string(kind), address)
	if err != nil {
		return fmt.Errorf("failed to remove list entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAddresses(ctx context.Context, kind ListKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address FROM list_store WHERE kind = $1 ORDER BY address
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		members = append(members, addr)
	}
	return members, rows.Err()
}

func (s *PostgresStore) Membership(ctx context.Context, address string) (Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind FROM list_store WHERE address = $1
	`, address)
	if err != nil {
		return Membership{}, fmt.Errorf("failed to look up list membership: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var m Membership
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return Membership{}, fmt.Errorf("failed to scan list kind: %w", err)
		}
		switch ListKind(kind) {
		case ListBlacklist:
			m.Blacklisted = true
		case ListWhitelist:
			m.Whitelisted = true
		}
	}
	return m, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r           Record
		fromAddress sql.NullString
		txHash      sql.NullString
		reasons     pq.StringArray
	)
	err := row.Scan(
		&r.RequestID, &r.Timestamp, &r.Chain, &fromAddress, &r.ToAddress,
		&r.Amount, &r.RiskScore, &r.RiskLevel, &r.Decision, &reasons,
		&r.Forced, &txHash,
	)
	if err != nil {
		return nil, err
	}
	r.FromAddress = fromAddress.String
	r.TxHash = txHash.String
	r.ReasonCodes = []string(reasons)
	return &r, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
