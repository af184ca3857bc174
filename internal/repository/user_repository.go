package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/utils"
)

// UserRepo persists accounts in the 'users' table.
type UserRepo struct{ db DBTX }

// ErrUserExists is returned when username, email or phone is taken.
var ErrUserExists = errors.New("user already exists")

const userColumns = `id, username, email, phone, password_hash, role, is_active, created_at, updated_at`

// NewUser is the input for UserRepo.Create.
type NewUser struct {
	Username string
	Email    string
	Phone    string
	Password string
	Role     string
}

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	now := nowUTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, phone, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.Username), email, strings.TrimSpace(in.Phone), hash, in.Role, true, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrUserExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByLogin fetches a user by normalized email or by username.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	return r.get(ctx, "SELECT "+userColumns+" FROM users WHERE email = ? OR username = ? LIMIT 1",
		strings.ToLower(login), login)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.get(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
}

func (r *UserRepo) get(ctx context.Context, q string, args ...any) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}
