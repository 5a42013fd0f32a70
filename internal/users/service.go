package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	AddDeviceToken(ctx context.Context, userID, token string) error
	DeviceTokensByRole(ctx context.Context, role Role) ([]DeviceToken, error)
}

type CreateParams struct {
	Name     string
	Email    string
	Password string
	Role     string
	PostName string
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreateUser(ctx context.Context, params CreateParams) (User, error) {
	role, err := ParseRole(params.Role)
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(params.Email) == "" || strings.TrimSpace(params.Name) == "" {
		return User{}, ErrIncompleteUser
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return User{}, err
	}

	u, err := s.store.CreateUser(ctx, User{
		Name:         strings.TrimSpace(params.Name),
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		PasswordHash: hash,
		Role:         role,
		PostName:     params.PostName,
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return User{}, err
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	slog.Info("User created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, err
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// RegisterDeviceToken records a push token for the user. Registering the
// same token twice is harmless.
func (s *Service) RegisterDeviceToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	if err := s.store.AddDeviceToken(ctx, userID, token); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("add device token: %w", err)
	}
	return nil
}

// SupervisorTokens returns the device tokens of every supervisor together
// with the ids of the supervisors owning them.
func (s *Service) SupervisorTokens(ctx context.Context) (userIDs []string, tokens []string, err error) {
	dts, err := s.store.DeviceTokensByRole(ctx, RoleSupervisor)
	if err != nil {
		return nil, nil, fmt.Errorf("list supervisor tokens: %w", err)
	}

	seen := make(map[string]bool)
	for _, dt := range dts {
		if !seen[dt.UserID] {
			seen[dt.UserID] = true
			userIDs = append(userIDs, dt.UserID)
		}
		tokens = append(tokens, dt.Token)
	}
	return userIDs, tokens, nil
}
