// Package postgres implements store.Store and store.Tx on top of
// pgx/v5 and pgxpool, following the row-locking and sorted-lock-order
// patterns the teacher's repository already used for its in-cents
// accounts.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/money"
)

const uniqueViolation = "23505"

// Store implements store.Store backed by a pgxpool connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres using dsn and configures the pool with the
// given connection limits and lifetime.
func New(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	poolCfg.MaxConns = int32(maxOpenConns)
	poolCfg.MinConns = int32(maxIdleConns)
	poolCfg.MaxConnLifetime = connMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

const userSelect = `SELECT id, email, full_name, is_active, created_at FROM users`

func scanUser(row rowScanner) (*ledger.User, error) {
	var u ledger.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.New(ledger.KindNotFound, "user not found")
		}
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	return scanUser(s.pool.QueryRow(ctx, userSelect+` WHERE id = $1`, id))
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.pool.Query(ctx, userSelect+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var out []ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, accountSelect+` WHERE id = $1`, id))
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, []ledger.LedgerEntry, error) {
	txn, err := scanTransaction(s.pool.QueryRow(ctx, transactionSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.pool.Query(ctx, ledgerEntrySelect+` WHERE transaction_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntryRows(rows)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
	}
	return txn, entries, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]ledger.Transaction, error) {
	query := transactionSelect + ` t WHERE 1=1`
	args := []interface{}{}
	argN := 0
	next := func(v interface{}) string {
		argN++
		args = append(args, v)
		return fmt.Sprintf("$%d", argN)
	}

	if filter.UserID != nil {
		query += fmt.Sprintf(` AND (t.user_id = %s OR EXISTS (
			SELECT 1 FROM ledger_entries le JOIN accounts a ON a.id = le.account_id
			WHERE le.transaction_id = t.id AND a.user_id = %s
		))`, next(*filter.UserID), next(*filter.UserID))
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND t.type = %s`, next(string(filter.Type)))
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND t.status = %s`, next(string(filter.Status)))
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(` AND t.created_at >= %s`, next(*filter.StartDate))
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(` AND t.created_at <= %s`, next(*filter.EndDate))
	}

	query += ` ORDER BY t.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT %s OFFSET %s`, next(limit), next(filter.Offset))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		txn, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (s *Store) WalletSummary(ctx context.Context, userID uuid.UUID) ([]store.WalletSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT currency, SUM(balance), SUM(available_balance)
		FROM accounts
		WHERE user_id = $1
		GROUP BY currency
		ORDER BY currency
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: wallet summary: %w", err)
	}
	defer rows.Close()

	var out []store.WalletSummary
	for rows.Next() {
		var ws store.WalletSummary
		var currency string
		var balance, available money.Money
		if err := rows.Scan(&currency, &balance, &available); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet summary: %w", err)
		}
		ws.Currency = ledger.Currency(currency)
		ws.Balance = balance.String()
		ws.AvailableBalance = available.String()
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (s *Store) AdminSummary(ctx context.Context) (*store.AdminSummary, error) {
	summary := &store.AdminSummary{
		TransactionsByType: make(map[ledger.TransactionType]int64),
		TotalAmountByType:  make(map[ledger.TransactionType]string),
		TotalWalletValue:   make(map[ledger.Currency]string),
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&summary.TotalUsers); err != nil {
		return nil, fmt.Errorf("postgres: count users: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&summary.TotalAccounts); err != nil {
		return nil, fmt.Errorf("postgres: count accounts: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&summary.TotalTransactions); err != nil {
		return nil, fmt.Errorf("postgres: count transactions: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT type, COUNT(*), COALESCE(SUM(amt.total), 0)
		FROM transactions t
		LEFT JOIN LATERAL (
			SELECT SUM(amount) AS total FROM ledger_entries WHERE transaction_id = t.id AND direction = 'DEBIT'
		) amt ON true
		GROUP BY type
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: transactions by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var count int64
		var total money.Money
		if err := rows.Scan(&t, &count, &total); err != nil {
			return nil, fmt.Errorf("postgres: scan transactions by type: %w", err)
		}
		summary.TransactionsByType[ledger.TransactionType(t)] = count
		summary.TotalAmountByType[ledger.TransactionType(t)] = total.String()
	}

	walletRows, err := s.pool.Query(ctx, `
		SELECT currency, SUM(balance) FROM accounts WHERE type = 'USER' GROUP BY currency
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: total wallet value: %w", err)
	}
	defer walletRows.Close()
	for walletRows.Next() {
		var c string
		var total money.Money
		if err := walletRows.Scan(&c, &total); err != nil {
			return nil, fmt.Errorf("postgres: scan total wallet value: %w", err)
		}
		summary.TotalWalletValue[ledger.Currency(c)] = total.String()
	}

	return summary, nil
}

// pgTx implements store.Tx over a single pgx.Tx.
type pgTx struct {
	tx pgx.Tx
}

const accountSelect = `SELECT id, user_id, name, type, currency, balance, available_balance, status, version, created_at, updated_at FROM accounts`
const transactionSelect = `SELECT id, reference, type, status, user_id, account_id, amount, currency, description, metadata, occurred_at, created_at, updated_at FROM transactions`
const ledgerEntrySelect = `SELECT id, transaction_id, account_id, direction, amount, balance_after, available_balance_after, created_at FROM ledger_entries`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var a ledger.Account
	var userID *uuid.UUID
	var accType, currency, status string
	if err := row.Scan(&a.ID, &userID, &a.Name, &accType, &currency, &a.Balance, &a.AvailableBalance, &status, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.New(ledger.KindNotFound, "account not found")
		}
		return nil, fmt.Errorf("postgres: scan account: %w", err)
	}
	a.UserID = userID
	a.Type = ledger.AccountType(accType)
	a.Currency = ledger.Currency(currency)
	a.Status = ledger.AccountStatus(status)
	return &a, nil
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var t ledger.Transaction
	var txType, status, currency string
	var userID *uuid.UUID
	var metadataRaw []byte
	if err := row.Scan(&t.ID, &t.Reference, &txType, &status, &userID, &t.AccountID, &t.Amount, &currency, &t.Description, &metadataRaw, &t.OccurredAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.New(ledger.KindNotFound, "transaction not found")
		}
		return nil, fmt.Errorf("postgres: scan transaction: %w", err)
	}
	t.Type = ledger.TransactionType(txType)
	t.Status = ledger.TransactionStatus(status)
	t.Currency = ledger.Currency(currency)
	t.UserID = userID
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &t.Metadata)
	}
	return &t, nil
}

func scanTransactionRows(rows pgx.Rows) (ledger.Transaction, error) {
	t, err := scanTransaction(rows)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return *t, nil
}

func scanLedgerEntryRows(rows pgx.Rows) (ledger.LedgerEntry, error) {
	var e ledger.LedgerEntry
	var direction string
	if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &direction, &e.Amount, &e.BalanceAfter, &e.AvailableBalanceAfter, &e.CreatedAt); err != nil {
		return e, fmt.Errorf("postgres: scan ledger entry: %w", err)
	}
	e.Direction = ledger.Direction(direction)
	return e, nil
}

func (t *pgTx) LockAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, accountSelect+` WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) GetOrCreateAccount(ctx context.Context, userID *uuid.UUID, accType ledger.AccountType, currency ledger.Currency, name string) (*ledger.Account, error) {
	id := uuid.New()
	now := time.Now().UTC()

	insert := `INSERT INTO accounts (id, user_id, name, type, currency, balance, available_balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 'ACTIVE', 0, $6, $6)
		ON CONFLICT (user_id, currency, type) WHERE user_id IS NOT NULL DO NOTHING`
	if userID == nil {
		insert = `INSERT INTO accounts (id, user_id, name, type, currency, balance, available_balance, status, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, 0, 'ACTIVE', 0, $6, $6)
			ON CONFLICT (currency, type) WHERE user_id IS NULL DO NOTHING`
	}

	if _, err := t.tx.Exec(ctx, insert, id, userID, name, string(accType), string(currency), now); err != nil {
		return nil, fmt.Errorf("postgres: get or create account: %w", err)
	}

	var query string
	var args []interface{}
	if userID != nil {
		query = accountSelect + ` WHERE user_id = $1 AND currency = $2 AND type = $3 FOR UPDATE`
		args = []interface{}{*userID, string(currency), string(accType)}
	} else {
		query = accountSelect + ` WHERE user_id IS NULL AND currency = $1 AND type = $2 FOR UPDATE`
		args = []interface{}{string(currency), string(accType)}
	}

	return scanAccount(t.tx.QueryRow(ctx, query, args...))
}

func (t *pgTx) UpdateAccount(ctx context.Context, acc *ledger.Account) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		SET balance = $1, available_balance = $2, status = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6
	`, acc.Balance, acc.AvailableBalance, string(acc.Status), time.Now().UTC(), acc.ID, acc.Version)
	if err != nil {
		return fmt.Errorf("postgres: update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.New(ledger.KindOptimisticConflict, "account version changed since it was locked")
	}
	acc.Version++
	return nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *ledger.User) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO users (id, email, full_name, is_active, created_at) VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.FullName, u.IsActive, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.New(ledger.KindUniqueViolation, "email already registered")
		}
		return fmt.Errorf("postgres: create user: %w", err)
	}
	return nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	metadataRaw, err := json.Marshal(txn.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO transactions (id, reference, type, status, user_id, account_id, amount, currency, description, metadata, occurred_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, txn.ID, txn.Reference, string(txn.Type), string(txn.Status), txn.UserID, txn.AccountID, txn.Amount, string(txn.Currency), txn.Description, metadataRaw, txn.OccurredAt, txn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.New(ledger.KindUniqueViolation, "transaction reference already exists")
		}
		return fmt.Errorf("postgres: create transaction: %w", err)
	}
	return nil
}

func (t *pgTx) CreateLedgerEntry(ctx context.Context, e *ledger.LedgerEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, transaction_id, account_id, direction, amount, balance_after, available_balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.TransactionID, e.AccountID, string(e.Direction), e.Amount, e.BalanceAfter, e.AvailableBalanceAfter, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) MarkTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE transactions SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: mark transaction status: %w", err)
	}
	return nil
}

func (t *pgTx) LockIdempotencyRecord(ctx context.Context, key string) (*ledger.IdempotencyRecord, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT key, request_hash, status, response_code, response_body, locked_at, locked_by, expires_at, created_at
		FROM idempotency_records WHERE key = $1 FOR UPDATE
	`, key)

	var rec ledger.IdempotencyRecord
	var status string
	if err := row.Scan(&rec.Key, &rec.RequestHash, &status, &rec.ResponseCode, &rec.ResponseBody, &rec.LockedAt, &rec.LockedBy, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: lock idempotency record: %w", err)
	}
	rec.Status = ledger.RequestStatus(status)
	return &rec, nil
}

func (t *pgTx) InsertIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO idempotency_records (key, request_hash, status, locked_at, locked_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.Key, rec.RequestHash, string(rec.Status), rec.LockedAt, rec.LockedBy, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.New(ledger.KindUniqueViolation, "idempotency key already exists")
		}
		return fmt.Errorf("postgres: insert idempotency record: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE idempotency_records
		SET status = $1, response_code = $2, response_body = $3, locked_at = $4, locked_by = $5, expires_at = $6
		WHERE key = $7
	`, string(rec.Status), rec.ResponseCode, rec.ResponseBody, rec.LockedAt, rec.LockedBy, rec.ExpiresAt, rec.Key)
	if err != nil {
		return fmt.Errorf("postgres: update idempotency record: %w", err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}
