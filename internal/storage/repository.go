package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pocketplan/internal/core"
	"pocketplan/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const txColumns = `id, category, type, amount, date, description, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		typ, date string
		amount    float64
	)
	if err := row.Scan(&tx.ID, &tx.Category, &typ, &amount, &date, &tx.Description, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TxType(typ)
	tx.Amount = core.Amount(amount)
	tx.Date = core.ParseDateInput(date)
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) getTransaction(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, userID, id string) (core.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()
	if tx.CreatedAt == "" {
		tx.CreatedAt = r.now().UTC().Format(time.RFC3339)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, category, type, amount, date, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, userID, tx.Category, string(tx.Type), tx.Amount.Float(), tx.Date.String(), tx.Description, tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", userID,
		"type", tx.Type,
		"amount", tx.Amount.Float())
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	current, err := r.getTransaction(ctx, dbtx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}
	_, err = dbtx.ExecContext(ctx,
		`UPDATE transactions SET category = ?, type = ?, amount = ?, date = ?, description = ?
		 WHERE user_id = ? AND id = ?`,
		updated.Category, string(updated.Type), updated.Amount.Float(), updated.Date.String(), updated.Description, userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	return r.deleteScoped(ctx, "transactions", userID, id)
}

func (r *SQLiteRepository) deleteScoped(ctx context.Context, table, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, store.ErrNotFound)
	}
	return nil
}

const goalColumns = `id, name, type, amount, target, created_at`

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g              core.Goal
		typ            string
		amount, target float64
	)
	if err := row.Scan(&g.ID, &g.Name, &typ, &amount, &target, &g.CreatedAt); err != nil {
		return core.Goal{}, err
	}
	g.Type = core.GoalType(typ)
	g.Amount = core.Amount(amount)
	g.Target = core.Amount(target)
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY name COLLATE NOCASE`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, userID string, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.ID = uuid.NewString()
	if g.CreatedAt == "" {
		g.CreatedAt = r.now().UTC().Format(time.RFC3339)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, name, type, amount, target, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, userID, g.Name, string(g.Type), g.Amount.Float(), g.Target.Float(), g.CreatedAt)
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, userID, id string, patch core.GoalPatch) (core.Goal, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Goal{}, fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	row := dbtx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? AND id = ?`, userID, id)
	current, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.Goal{}, err
	}
	_, err = dbtx.ExecContext(ctx,
		`UPDATE goals SET name = ?, type = ?, amount = ?, target = ? WHERE user_id = ? AND id = ?`,
		updated.Name, string(updated.Type), updated.Amount.Float(), updated.Target.Float(), userID, id)
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return core.Goal{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id string) error {
	return r.deleteScoped(ctx, "goals", userID, id)
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	p := core.Profile{UserID: userID}
	err := r.db.QueryRowContext(ctx, `SELECT base_balance FROM profiles WHERE user_id = ?`, userID).Scan(&p.BaseBalance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, base_balance) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET base_balance = excluded.base_balance`,
		p.UserID, p.BaseBalance)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

const accountColumns = `id, name, email, photo_url, password_hash, email_verified, provider, created_at`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a        core.Account
		verified int64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PhotoURL, &a.PasswordHash, &verified, &a.Provider, &a.CreatedAt); err != nil {
		return core.Account{}, err
	}
	a.EmailVerified = verified != 0
	return a, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	key := core.NormalizeEmail(a.Email)
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM accounts WHERE email_key = ?`, key).Scan(&exists); err != nil {
		return fmt.Errorf("check account email: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("account %s: %w", key, store.ErrDuplicate)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, email_key, photo_url, password_hash, email_verified, provider, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, key, a.PhotoURL, a.PasswordHash, boolInt(a.EmailVerified), a.Provider, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) GetAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	key := core.NormalizeEmail(email)
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email_key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, email = ?, email_key = ?, photo_url = ?, password_hash = ?, email_verified = ?, provider = ?
		 WHERE id = ?`,
		a.Name, a.Email, core.NormalizeEmail(a.Email), a.PhotoURL, a.PasswordHash, boolInt(a.EmailVerified), a.Provider, a.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("account %s: %w", a.Email, store.ErrDuplicate)
		}
		return fmt.Errorf("update account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}
