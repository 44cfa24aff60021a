package repo

import (
	"context"
	"fmt"

	"festreg/internal/model"
)

const userColumns = `id, name, email, phone, college, role, code, avatar, password_hash, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.College, &u.Role,
		&u.Code, &u.Avatar, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *store) CreateUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, name, email, phone, college, role, code, avatar, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := s.q.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Email, u.Phone, u.College, u.Role, u.Code, u.Avatar, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if terr := translateUnique(err); terr != err {
			return terr
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return u, nil
}

func (s *store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return u, nil
}

func (s *store) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return u, nil
}

func (s *store) UserCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := s.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user code: %w", err)
	}
	return exists, nil
}
