package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/users"
)

var ErrNotAgent = errors.New("enrollment is only available for agent accounts")

type UserGetter interface {
	GetUser(ctx context.Context, id string) (users.User, error)
}

type TokenIssuer interface {
	IssueToken(user users.User) (auth.LoginResult, error)
}

type Service struct {
	codes  *CodeStore
	users  UserGetter
	tokens TokenIssuer
}

func NewService(codes *CodeStore, users UserGetter, tokens TokenIssuer) *Service {
	return &Service{codes: codes, users: users, tokens: tokens}
}

func (s *Service) Create(ctx context.Context, userID string) (Code, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Code{}, err
	}
	if user.Role != users.RoleAgent {
		return Code{}, ErrNotAgent
	}
	return s.codes.Create(user.ID)
}

// Redeem exchanges a code for an access token. Accounts deleted after the
// code was issued fail with ErrCodeNotFound like any unknown code.
func (s *Service) Redeem(ctx context.Context, code string) (auth.LoginResult, error) {
	userID, err := s.codes.Redeem(code)
	if err != nil {
		return auth.LoginResult{}, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return auth.LoginResult{}, ErrCodeNotFound
		}
		return auth.LoginResult{}, fmt.Errorf("load enrolled user: %w", err)
	}

	result, err := s.tokens.IssueToken(user)
	if err != nil {
		return auth.LoginResult{}, err
	}
	slog.Info("Device enrolled", "user_id", user.ID)
	return result, nil
}

func (s *Service) Revoke(userID string) int {
	return s.codes.Revoke(userID)
}

func (s *Service) Pending() []Code {
	return s.codes.Pending()
}
