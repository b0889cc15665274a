package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"seclab/crypto"
	"seclab/models"
	"seclab/query"
)

// Users is the credential store. Every statement that carries user input is
// built by the variant's query builder, so the BAD variant is injectable here.
type Users struct {
	db      *sql.DB
	queries query.Builder
	hasher  crypto.PasswordHasher
}

func NewUsers(db *sql.DB, queries query.Builder, hasher crypto.PasswordHasher) *Users {
	return &Users{db: db, queries: queries, hasher: hasher}
}

func (u *Users) Hasher() crypto.PasswordHasher {
	return u.hasher
}

func (u *Users) Lookup(ctx context.Context, username string) (models.User, error) {
	text, args := u.queries.BuildQuery(
		"SELECT id, username, password, role, created_at FROM users WHERE username = ?", username).SQL()

	var user models.User
	var role string
	err := u.db.QueryRowContext(ctx, text, args...).
		Scan(&user.ID, &user.Username, &user.Password, &role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	user.Role = models.Role(role)
	return user, nil
}

func (u *Users) Create(ctx context.Context, username, password string) (models.User, error) {
	rep, err := u.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	text, args := u.queries.BuildQuery(
		"INSERT INTO users (username, password, role) VALUES (?, ?, ?)",
		username, rep, string(models.RoleStandard)).SQL()
	result, err := u.db.ExecContext(ctx, text, args...)
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUsername
	}
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return models.User{ID: int(id), Username: username, Password: rep, Role: models.RoleStandard}, nil
}

func (u *Users) UpdatePassword(ctx context.Context, username, newPassword string) error {
	rep, err := u.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	text, args := u.queries.BuildQuery(
		"UPDATE users SET password = ? WHERE username = ?", rep, username).SQL()
	result, err := u.db.ExecContext(ctx, text, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search returns the users whose name matches input exactly.
func (u *Users) Search(ctx context.Context, input string) ([]models.User, error) {
	q := u.queries.BuildQuery("SELECT id, username, role, created_at FROM users WHERE username = ?", input)
	return u.list(ctx, q)
}

func (u *Users) List(ctx context.Context) ([]models.User, error) {
	return u.list(ctx, query.Bind("SELECT id, username, role, created_at FROM users ORDER BY username"))
}

func (u *Users) list(ctx context.Context, q query.Query) ([]models.User, error) {
	text, args := q.SQL()
	rows, err := u.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var role string
		if err := rows.Scan(&user.ID, &user.Username, &role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.Role = models.Role(role)
		users = append(users, user)
	}
	return users, rows.Err()
}
