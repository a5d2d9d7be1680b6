package backend

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/psiquelab/portal/internal/types"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) GetProfile(ctx context.Context, userId uuid.UUID) (types.Profile, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(types.Profile), args.Error(1)
}

func (m *MockRepository) ListGrants(ctx context.Context, userId uuid.UUID) ([]types.TierRef, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]types.TierRef), args.Error(1)
}

func (m *MockRepository) ListContent(ctx context.Context, tiers []types.TierRef) ([]types.ContentItem, error) {
	args := m.Called(ctx, tiers)
	return args.Get(0).([]types.ContentItem), args.Error(1)
}

func (m *MockRepository) ListFiles(ctx context.Context, tiers []types.TierRef) ([]types.FileItem, error) {
	args := m.Called(ctx, tiers)
	return args.Get(0).([]types.FileItem), args.Error(1)
}

func (m *MockRepository) ListCompleted(ctx context.Context, userId uuid.UUID) ([]types.ItemID, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]types.ItemID), args.Error(1)
}

func (m *MockRepository) UpsertCompletion(ctx context.Context, rec types.CompletionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) ListMessages(ctx context.Context, limit int) ([]types.ChatMessage, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]types.ChatMessage), args.Error(1)
}

func (m *MockRepository) CreateMessage(ctx context.Context, userId uuid.UUID, body string) (types.ChatMessage, error) {
	args := m.Called(ctx, userId, body)
	return args.Get(0).(types.ChatMessage), args.Error(1)
}

type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) SignIn(ctx context.Context, email, password string) (types.Identity, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(types.Identity), args.Error(1)
}

func (m *MockIdentityService) GetSession(ctx context.Context) (types.Identity, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Identity), args.Error(1)
}

func (m *MockIdentityService) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockRealtimeFeed struct {
	mock.Mock
}

func (m *MockRealtimeFeed) Subscribe(ctx context.Context) (<-chan types.ChatMessage, error) {
	args := m.Called(ctx)
	if ch, ok := args.Get(0).(chan types.ChatMessage); ok {
		return ch, args.Error(1)
	}
	if ch, ok := args.Get(0).(<-chan types.ChatMessage); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRealtimeFeed) Unsubscribe() error {
	args := m.Called()
	return args.Error(0)
}
