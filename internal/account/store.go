// Package account persists user accounts in SQLite and doubles as the
// router's user directory. Passwords are stored as bcrypt hashes; the plain
// password never leaves this package's call boundary.
package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

// credentials carries signup/login input through validation.
type credentials struct {
	Username string `validate:"required,alphanum,min=3,max=32"`
	Password string `validate:"required,min=8,max=72"`
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);`

// Store is the SQLite-backed account store.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed bootstraps) the account database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open account database: %w", err)
	}

	// SQLite tolerates one writer; a single pooled connection keeps writes
	// serialized without a dedicated writer goroutine.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}

	return &Store{db: db}, nil
}

// Create registers a new account. The username/password pair is validated
// before any cryptographic work; a duplicate username yields ErrUserExists.
func (s *Store) Create(ctx context.Context, username, password string) error {
	if err := validate.Struct(credentials{Username: username, Password: password}); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		username, string(hash), time.Now().UTC())
	if err != nil {
		if sqliteErr, ok := err.(sqlite3.Error); ok && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Authenticate checks a username/password pair against the stored hash.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM users WHERE username = ?", username).Scan(&hash)
	if err == sql.ErrNoRows {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Usernames returns every registered account name. This is the user
// directory the router fans public-message history out over.
func (s *Store) Usernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT username FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
