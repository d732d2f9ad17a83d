package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filltrip/internal/database"
	"filltrip/internal/models"
)

type userRepository struct {
	store *Store
}

const userColumns = `id, full_name, username, email, password_hash, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var createdAt int64
	err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	created := *u
	created.Email = strings.ToLower(strings.TrimSpace(u.Email))
	created.CreatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := r.store.db.ExecContext(ctx,
		`INSERT INTO users (full_name, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		created.FullName, created.Username, created.Email, created.PasswordHash, created.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return nil, database.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}
	created.ID = id
	return &created, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, err := scanUser(r.store.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil && err != database.ErrNotFound {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, err := scanUser(r.store.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil && err != database.ErrNotFound {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, err := scanUser(r.store.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil && err != database.ErrNotFound {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, err
}
