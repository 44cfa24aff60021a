package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"festreg/internal/dto"
	"festreg/internal/model"
	"festreg/internal/repo"
)

const signupAttempts = 3

// Signup creates a participant account with a generated code.
func (s *Service) Signup(ctx context.Context, req dto.SignupRequest) (*model.User, error) {
	return s.createUser(ctx, req, model.RoleParticipant)
}

// CreateAdmin creates an administrator account. It is reachable from the CLI only.
func (s *Service) CreateAdmin(ctx context.Context, req dto.SignupRequest) (*model.User, error) {
	return s.createUser(ctx, req, model.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, req dto.SignupRequest, role model.Role) (*model.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, internalError(err)
	}

	u := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		Phone:        normalizePhone(req.Phone),
		College:      strings.TrimSpace(req.College),
		Role:         role,
		PasswordHash: hash,
	}

	// The generator's lookup can race with a concurrent signup; the unique
	// constraint on code catches that and a fresh code is drawn.
	for attempt := 1; attempt <= signupAttempts; attempt++ {
		u.ID = uuid.NewString()
		u.Code, err = s.codes.Generate(ctx, s.repo)
		if err != nil {
			return nil, internalError(err)
		}
		err = s.repo.CreateUser(ctx, u)
		if !errors.Is(err, repo.ErrDuplicateCode) {
			break
		}
		s.log.Warn().Str("code", u.Code).Int("attempt", attempt).Msg("user code taken on insert, retrying")
	}
	switch {
	case errors.Is(err, repo.ErrDuplicateUser):
		return nil, conflictError(CodeDuplicateUser, "An account with this e-mail or phone already exists")
	case err != nil:
		return nil, internalError(err)
	}

	s.log.Info().Str("user_id", u.ID).Str("code", u.Code).Str("role", string(u.Role)).Msg("user created")
	return u, nil
}

// Authenticate checks e-mail and password and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, notAuthorized("Invalid e-mail or password")
		}
		return nil, internalError(err)
	}
	if u.PasswordHash == "" || !s.hasher.Check(u.PasswordHash, password) {
		return nil, notAuthorized("Invalid e-mail or password")
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.loadUser(ctx, s.repo, id)
}
