package coa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// accountSelect builds the account column list for the given table alias,
// including the correlated parent-number lookup.
func accountSelect(alias string) string {
	cols := []string{
		"id", "number", "name", "account_type", "description", "parent_id",
		"status", "is_active", "status_change_date", "status_change_reason",
		"requested_by", "requested_date", "approved_by", "approved_date",
		"created_at", "updated_at",
	}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	parent := fmt.Sprintf("(SELECT p.number FROM accounts p WHERE p.id = %s.parent_id)", alias)
	return strings.Join(cols, ", ") + ", " + parent
}

// Repository provides PostgreSQL backed persistence for accounts and their
// status history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a repeatable-read transaction. Account mutations and
// their history appends always share one transaction so the two cannot
// diverge.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("coa: begin tx: %w", err)
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetByNumber loads one account.
func (r *Repository) GetByNumber(ctx context.Context, number string) (Account, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+accountSelect("a")+" FROM accounts a WHERE a.number = $1", number)
	return scanAccount(row)
}

// List returns a filtered page of accounts ordered by number, plus the
// total matching count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Account, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Status != "" {
		where = append(where, "a.status = "+arg(string(filters.Status)))
	}
	if filters.TypeName != "" {
		where = append(where, "a.account_type = "+arg(filters.TypeName))
	}
	if filters.Search != "" {
		p := arg("%" + filters.Search + "%")
		where = append(where, fmt.Sprintf("(a.number ILIKE %s OR a.name ILIKE %s OR a.description ILIKE %s)", p, p, p))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts a"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filters.Page - 1) * filters.Limit
	query := "SELECT " + accountSelect("a") + " FROM accounts a" + clause +
		" ORDER BY a.number LIMIT " + arg(filters.Limit) + " OFFSET " + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// Children returns the direct children of an account ordered by number.
func (r *Repository) Children(ctx context.Context, parentID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+accountSelect("a")+" FROM accounts a WHERE a.parent_id = $1 ORDER BY a.number", parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// History returns all ledger entries for an account, newest first.
func (r *Repository) History(ctx context.Context, accountID int64) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, account_id, status, effective_date, notes, created_by, requested_by, approved_by, created_at
FROM account_status_history WHERE account_id = $1 ORDER BY effective_date DESC, created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var status string
		if err := rows.Scan(&e.ID, &e.AccountID, &status, &e.EffectiveDate, &e.Notes, &e.CreatedBy, &e.RequestedBy, &e.ApprovedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StatusesAsOf returns, for every account existing on day, its latest ledger
// entry with effective_date on or before day. The lateral limit guarantees
// exactly one row per account.
func (r *Repository) StatusesAsOf(ctx context.Context, day time.Time) ([]AccountStatusAsOf, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+accountSelect("a")+`, h.status
FROM accounts a
LEFT JOIN LATERAL (
	SELECT status FROM account_status_history
	WHERE account_id = a.id AND effective_date <= $1
	ORDER BY effective_date DESC, created_at DESC
	LIMIT 1
) h ON TRUE
WHERE a.created_at::date <= $1
ORDER BY a.number`, dateOnly(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []AccountStatusAsOf
	for rows.Next() {
		a, latest, err := scanAccountWithStatus(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, AccountStatusAsOf{Account: a, Latest: latest})
	}
	return result, rows.Err()
}

// GetForUpdate locks the account row for the rest of the transaction,
// serialising concurrent transitions on the same account.
func (t *txRepo) GetForUpdate(ctx context.Context, number string) (Account, error) {
	row := t.tx.QueryRow(ctx, "SELECT "+accountSelect("a")+" FROM accounts a WHERE a.number = $1 FOR UPDATE OF a", number)
	return scanAccount(row)
}

// Insert persists a new account and returns its id. A unique violation on
// the number maps to ErrDuplicateNumber.
func (t *txRepo) Insert(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO accounts
(number, name, account_type, description, parent_id, status, is_active,
 status_change_date, status_change_reason, requested_by, requested_date,
 approved_by, approved_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id`,
		a.Number, a.Name, a.TypeName, a.Description, a.ParentID, string(a.Status), a.IsActive,
		a.StatusChangeDate, a.StatusChangeReason, a.RequestedBy, a.RequestedDate,
		a.ApprovedBy, a.ApprovedDate, a.CreatedAt, a.UpdatedAt).Scan(&id)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

// Update writes back all mutable fields.
func (t *txRepo) Update(ctx context.Context, a Account) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET
name = $2, description = $3, parent_id = $4, status = $5, is_active = $6,
status_change_date = $7, status_change_reason = $8, requested_by = $9,
requested_date = $10, approved_by = $11, approved_date = $12, updated_at = $13
WHERE id = $1`,
		a.ID, a.Name, a.Description, a.ParentID, string(a.Status), a.IsActive,
		a.StatusChangeDate, a.StatusChangeReason, a.RequestedBy, a.RequestedDate,
		a.ApprovedBy, a.ApprovedDate, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the account; its history rows cascade via the FK.
func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory writes one ledger entry.
func (t *txRepo) AppendHistory(ctx context.Context, e HistoryEntry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO account_status_history
(id, account_id, status, effective_date, notes, created_by, requested_by, approved_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.AccountID, string(e.Status), e.EffectiveDate, e.Notes, e.CreatedBy, e.RequestedBy, e.ApprovedBy, e.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		a      Account
		status string
		parent *string
	)
	err := row.Scan(&a.ID, &a.Number, &a.Name, &a.TypeName, &a.Description, &a.ParentID,
		&status, &a.IsActive, &a.StatusChangeDate, &a.StatusChangeReason,
		&a.RequestedBy, &a.RequestedDate, &a.ApprovedBy, &a.ApprovedDate,
		&a.CreatedAt, &a.UpdatedAt, &parent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	a.Status = Status(status)
	if parent != nil {
		a.ParentNumber = *parent
	}
	return a, nil
}

func scanAccountWithStatus(row rowScanner) (Account, *Status, error) {
	var (
		a      Account
		status string
		parent *string
		latest *string
	)
	err := row.Scan(&a.ID, &a.Number, &a.Name, &a.TypeName, &a.Description, &a.ParentID,
		&status, &a.IsActive, &a.StatusChangeDate, &a.StatusChangeReason,
		&a.RequestedBy, &a.RequestedDate, &a.ApprovedBy, &a.ApprovedDate,
		&a.CreatedAt, &a.UpdatedAt, &parent, &latest)
	if err != nil {
		return Account{}, nil, err
	}
	a.Status = Status(status)
	if parent != nil {
		a.ParentNumber = *parent
	}
	if latest == nil {
		return a, nil, nil
	}
	st := Status(*latest)
	return a, &st, nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
