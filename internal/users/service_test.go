package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, u User) (User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, id string) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockStore) AddDeviceToken(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *MockStore) DeviceTokensByRole(ctx context.Context, role Role) ([]DeviceToken, error) {
	args := m.Called(ctx, role)
	if v := args.Get(0); v != nil {
		return v.([]DeviceToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestService_CreateUser(t *testing.T) {
	store := new(MockStore)
	store.On("CreateUser", mock.Anything, mock.MatchedBy(func(u User) bool {
		return u.Email == "amani@kami.test" && u.Role == RoleAgent && CheckPassword("secret123", u.PasswordHash)
	})).Return(User{ID: "u1", Name: "Amani", Email: "amani@kami.test", Role: RoleAgent}, nil)

	svc := NewService(store)
	u, err := svc.CreateUser(context.Background(), CreateParams{
		Name:     "Amani",
		Email:    " Amani@Kami.test ",
		Password: "secret123",
		Role:     "agent",
	})

	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	store.AssertExpectations(t)
}

func TestService_CreateUser_InvalidRole(t *testing.T) {
	svc := NewService(new(MockStore))
	_, err := svc.CreateUser(context.Background(), CreateParams{Name: "x", Email: "x@y", Password: "p", Role: "student"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestService_CreateUser_Duplicate(t *testing.T) {
	store := new(MockStore)
	store.On("CreateUser", mock.Anything, mock.Anything).Return(User{}, ErrEmailExists)

	svc := NewService(store)
	_, err := svc.CreateUser(context.Background(), CreateParams{Name: "x", Email: "x@y", Password: "password1", Role: "admin"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestService_CreateUser_Incomplete(t *testing.T) {
	svc := NewService(new(MockStore))

	_, err := svc.CreateUser(context.Background(), CreateParams{Name: " ", Email: "x@y", Password: "password1", Role: "agent"})
	assert.ErrorIs(t, err, ErrIncompleteUser)

	_, err = svc.CreateUser(context.Background(), CreateParams{Name: "x", Email: "x@y", Password: "p", Role: "agent"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestService_RegisterDeviceToken(t *testing.T) {
	store := new(MockStore)
	store.On("AddDeviceToken", mock.Anything, "u1", "tok").Return(nil)
	store.On("AddDeviceToken", mock.Anything, "ghost", "tok").Return(ErrUserNotFound)

	svc := NewService(store)
	assert.NoError(t, svc.RegisterDeviceToken(context.Background(), "u1", " tok "))
	assert.ErrorIs(t, svc.RegisterDeviceToken(context.Background(), "ghost", "tok"), ErrUserNotFound)
	assert.Error(t, svc.RegisterDeviceToken(context.Background(), "u1", "  "))
}

func TestService_SupervisorTokens(t *testing.T) {
	store := new(MockStore)
	store.On("DeviceTokensByRole", mock.Anything, RoleSupervisor).Return([]DeviceToken{
		{UserID: "s1", Token: "a"},
		{UserID: "s1", Token: "b"},
		{UserID: "s2", Token: "c"},
	}, nil)

	svc := NewService(store)
	ids, tokens, err := svc.SupervisorTokens(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
	assert.Equal(t, []string{"a", "b", "c"}, tokens)
}
