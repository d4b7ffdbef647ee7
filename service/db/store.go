package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors returned by store operations. Callers translate these into
// business outcomes (device replies, HTTP statuses) rather than treating them
// as infrastructure failures.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateTag      = errors.New("tag already registered")
)

// HolderUnknown is the display-name sentinel recorded on movements whose tag
// resolved to no account.
const HolderUnknown = "unknown"

// MovementKind is the closed set of reasons a movement row is created.
type MovementKind string

const (
	MovementManualTopup       MovementKind = "manual_topup"
	MovementDebitSuccess      MovementKind = "debit_success"
	MovementUnknownTag        MovementKind = "unknown_tag"
	MovementInsufficientFunds MovementKind = "insufficient_funds"
)

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Account represents a registered card holder.
// Balances are integer minor units and never go negative.
type Account struct {
	ID           int64
	TagID        string
	FirstName    string
	LastName     string
	Balance      int64
	RegisteredAt time.Time
}

// HolderName returns the display name recorded on movements for this account.
func (a *Account) HolderName() string {
	return a.FirstName + " " + a.LastName
}

// Movement is one immutable audit record of a transaction attempt.
type Movement struct {
	ID         int64
	HolderName string
	TagID      string
	Amount     int64
	Kind       MovementKind
	RecordedAt time.Time
}

// CreateAccountParams contains the parameters for registering an account.
type CreateAccountParams struct {
	TagID     string
	FirstName string
	LastName  string
	Balance   int64
}

// AppendMovementParams contains the parameters for appending a movement.
type AppendMovementParams struct {
	HolderName string
	TagID      string
	Amount     int64
	Kind       MovementKind
	RecordedAt time.Time
}

// ListMovementsParams contains filter parameters for listing movements.
// A zero Limit means no limit; an empty TagID matches all tags.
type ListMovementsParams struct {
	TagID string
	Limit int32
}

// CreateAccount registers a new account. Returns ErrDuplicateTag if the tag
// is already registered.
func (s *Store) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	account := &Account{
		TagID:     params.TagID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Balance:   params.Balance,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (tag_id, first_name, last_name, balance, registered_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, registered_at`,
		params.TagID, params.FirstName, params.LastName, params.Balance,
	).Scan(&account.ID, &account.RegisteredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateTag
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// GetAccountByTag retrieves an account by its card tag.
// Returns ErrAccountNotFound if no account has the tag.
func (s *Store) GetAccountByTag(ctx context.Context, tagID string) (*Account, error) {
	account := &Account{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tag_id, first_name, last_name, balance, registered_at
		FROM accounts
		WHERE tag_id = $1`,
		tagID,
	).Scan(&account.ID, &account.TagID, &account.FirstName, &account.LastName, &account.Balance, &account.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns all registered accounts ordered by registration time.
func (s *Store) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tag_id, first_name, last_name, balance, registered_at
		FROM accounts
		ORDER BY registered_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account := &Account{}
		if err := rows.Scan(&account.ID, &account.TagID, &account.FirstName, &account.LastName, &account.Balance, &account.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// DebitAccount decrements the account balance by amount in a single
// conditional statement, so a concurrent top-up can never be lost and the
// balance can never go negative. Returns the new balance, or
// ErrAccountNotFound / ErrInsufficientFunds.
func (s *Store) DebitAccount(ctx context.Context, tagID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("debit amount must be non-negative, got %d", amount)
	}

	var balance int64
	err := s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance - $2
		WHERE tag_id = $1 AND balance >= $2
		RETURNING balance`,
		tagID, amount,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the tag is unknown or the balance was too low; one more
		// round-trip disambiguates.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE tag_id = $1)`, tagID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to check account existence: %w", err)
		}
		if !exists {
			return 0, ErrAccountNotFound
		}
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit account: %w", err)
	}
	return balance, nil
}

// CreditAccount increments the account balance by amount (a manual top-up).
// Returns the new balance, or ErrAccountNotFound.
func (s *Store) CreditAccount(ctx context.Context, tagID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit amount must be non-negative, got %d", amount)
	}

	var balance int64
	err := s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $2
		WHERE tag_id = $1
		RETURNING balance`,
		tagID, amount,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}
	return balance, nil
}

// DeleteAccount removes an account and all movements recorded against its
// tag, in one transaction. Returns ErrAccountNotFound if the tag is not
// registered.
func (s *Store) DeleteAccount(ctx context.Context, tagID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM movements WHERE tag_id = $1`, tagID); err != nil {
		return fmt.Errorf("failed to delete movements: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM accounts WHERE tag_id = $1`, tagID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// AppendMovement inserts one movement row. Movements are append-only; nothing
// in the service updates or deletes them except DeleteAccount.
func (s *Store) AppendMovement(ctx context.Context, params AppendMovementParams) (*Movement, error) {
	recordedAt := params.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	movement := &Movement{
		HolderName: params.HolderName,
		TagID:      params.TagID,
		Amount:     params.Amount,
		Kind:       params.Kind,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO movements (holder_name, tag_id, amount, kind, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, recorded_at`,
		params.HolderName, params.TagID, params.Amount, string(params.Kind), recordedAt,
	).Scan(&movement.ID, &movement.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append movement: %w", err)
	}

	return movement, nil
}

// ListMovements returns movements ordered by id ascending, optionally
// filtered by tag and capped by limit.
func (s *Store) ListMovements(ctx context.Context, params ListMovementsParams) ([]*Movement, error) {
	query := `
		SELECT id, holder_name, tag_id, amount, kind, recorded_at
		FROM movements`
	args := []any{}
	if params.TagID != "" {
		query += ` WHERE tag_id = $1`
		args = append(args, params.TagID)
	}
	query += ` ORDER BY id`
	if params.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, params.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []*Movement
	for rows.Next() {
		m := &Movement{}
		var kind string
		if err := rows.Scan(&m.ID, &m.HolderName, &m.TagID, &m.Amount, &kind, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Kind = MovementKind(kind)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}
	return movements, nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
