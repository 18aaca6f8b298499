package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

// Connect opens and pings a database. driver is "postgres" or "sqlite".
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, err
	}
	if driver == "sqlite" {
		// one connection so that ":memory:" databases are shared
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	return db, nil
}

func (r *Repo) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := migrations.ReadFile(f)
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(b), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s: %w", f, err)
			}
		}
		r.log.Debugf("applied migration %s", f)
	}
	return nil
}

// GetDocument returns the stored body, or ok=false when nothing is stored under the key.
func (r *Repo) GetDocument(ctx context.Context, collection, key string) ([]byte, bool, error) {
	var body string
	q := r.db.Rebind(`SELECT body FROM documents WHERE collection = ? AND doc_key = ?`)
	if err := r.db.GetContext(ctx, &body, q, collection, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(body), true, nil
}

// SetDocument overwrites the whole document. Last write wins.
func (r *Repo) SetDocument(ctx context.Context, collection, key string, body []byte) error {
	q := r.db.Rebind(`INSERT INTO documents (collection, doc_key, body, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, doc_key) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`)
	_, err := r.db.ExecContext(ctx, q, collection, key, string(body))
	return err
}

func (r *Repo) CreateAccount(ctx context.Context, a Account) error {
	q := r.db.Rebind(`INSERT INTO accounts (id, email, password_hash) VALUES (?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, q, a.ID, a.Email, a.PasswordHash); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAccountByEmail returns sql.ErrNoRows when no account uses the address.
func (r *Repo) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	q := r.db.Rebind(`SELECT id, email, password_hash FROM accounts WHERE email = ?`)
	err := r.db.GetContext(ctx, &a, q, email)
	return a, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// extended codes disabled
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
