package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lameck50/backend-kami/internal/users"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type LoginResult struct {
	Token string
	User  users.User
}

type Service struct {
	store  users.Store
	config Config
}

func NewService(store users.Store, config Config) *Service {
	return &Service{
		store:  store,
		config: config,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("query user: %w", err)
	}

	if !users.CheckPassword(password, user.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	return s.IssueToken(user)
}

// IssueToken signs an access token for an already authenticated user.
func (s *Service) IssueToken(user users.User) (LoginResult, error) {
	token, err := GenerateToken(s.config, user.ID, user.Name, string(user.Role))
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate token: %w", err)
	}

	return LoginResult{Token: token, User: user}, nil
}
