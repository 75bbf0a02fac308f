package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"minimarket/internal/apperrors"
	"minimarket/internal/models"
	"minimarket/internal/repositories"
	"minimarket/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAppConfigStore is a testify mock of repositories.AppConfigRepository.
type MockAppConfigStore struct {
	mock.Mock
}

func (m *MockAppConfigStore) Get(ctx context.Context) (*models.AppConfig, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*models.AppConfig)
	return cfg, args.Error(1)
}

func (m *MockAppConfigStore) Save(ctx context.Context, cfg *models.AppConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockFeaturedStore is a testify mock of repositories.FeaturedRepository.
type MockFeaturedStore struct {
	mock.Mock
}

func (m *MockFeaturedStore) Get(ctx context.Context) (*models.FeaturedProducts, error) {
	args := m.Called(ctx)
	f, _ := args.Get(0).(*models.FeaturedProducts)
	return f, args.Error(1)
}

func (m *MockFeaturedStore) Save(ctx context.Context, featured *models.FeaturedProducts) error {
	args := m.Called(ctx, featured)
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

func TestAppConfigService_PartialUpdate(t *testing.T) {
	ctx := context.Background()
	svc := services.NewAppConfigService(repositories.NewMockAppConfigRepository(), nil, quietLog)

	cfg, err := svc.Update(ctx, services.AppConfigPatch{Theme: strPtr("rose"), LogoURL: strPtr("https://cdn.example.com/logo.png")})
	require.NoError(t, err)
	assert.Equal(t, "rose", cfg.Theme)
	assert.Equal(t, "Minimarket Digital", cfg.AppName)
	require.NotNil(t, cfg.LogoURL)

	cfg, err = svc.Update(ctx, services.AppConfigPatch{LogoURL: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cfg.LogoURL)
	assert.Equal(t, "rose", cfg.Theme)
}

func TestAppConfigService_Validation(t *testing.T) {
	svc := services.NewAppConfigService(repositories.NewMockAppConfigRepository(), nil, quietLog)

	_, err := svc.Update(context.Background(), services.AppConfigPatch{Theme: strPtr("neon")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.Update(context.Background(), services.AppConfigPatch{LogoURL: strPtr("ftp://example.com/logo.png")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.Update(context.Background(), services.AppConfigPatch{WhatsappNumber: strPtr("+54911123456789012345")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestFeaturedService_Save(t *testing.T) {
	ctx := context.Background()
	svc := services.NewFeaturedService(repositories.NewMockFeaturedRepository(), nil, quietLog)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Popular)

	saved, err := svc.Save(ctx, json.RawMessage(`[{"id":"p1","name":"Agua"},"p2"]`), json.RawMessage(`[]`))
	require.NoError(t, err)
	require.Len(t, saved.Popular, 2)
	assert.JSONEq(t, `{"id":"p1","name":"Agua"}`, string(saved.Popular[0]))
	assert.NotNil(t, saved.OnSale)
	assert.Empty(t, saved.OnSale)
}

func TestFeaturedService_RejectsNonArrays(t *testing.T) {
	svc := services.NewFeaturedService(repositories.NewMockFeaturedRepository(), nil, quietLog)

	for _, tc := range []struct{ popular, onSale string }{
		{`{"id":"p1"}`, `[]`},
		{`[]`, `null`},
		{``, `[]`},
		{`"p1"`, `[]`},
	} {
		_, err := svc.Save(context.Background(), json.RawMessage(tc.popular), json.RawMessage(tc.onSale))
		assert.ErrorIs(t, err, apperrors.ErrValidation, tc)
	}
}

func TestAppConfigService_GetCreatesDefault(t *testing.T) {
	store := new(MockAppConfigStore)
	store.On("Get", mock.Anything).Return(nil, apperrors.NotFound("app config not initialized"))
	store.On("Save", mock.Anything, mock.AnythingOfType("*models.AppConfig")).Return(nil)
	svc := services.NewAppConfigService(store, nil, quietLog)

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Minimarket Digital", cfg.AppName)
	assert.Equal(t, "blue", cfg.Theme)
	store.AssertNumberOfCalls(t, "Save", 1)
}

func TestAppConfigService_GetPropagatesStoreFailure(t *testing.T) {
	store := new(MockAppConfigStore)
	store.On("Get", mock.Anything).Return(nil, apperrors.DatabaseUnavailable(context.DeadlineExceeded))
	svc := services.NewAppConfigService(store, nil, quietLog)

	_, err := svc.Get(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDatabaseUnavailable)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestFeaturedService_SaveCreatesRecordWhenMissing(t *testing.T) {
	store := new(MockFeaturedStore)
	store.On("Get", mock.Anything).Return(nil, apperrors.NotFound("featured products not initialized"))
	store.On("Save", mock.Anything, mock.AnythingOfType("*models.FeaturedProducts")).Return(nil)
	svc := services.NewFeaturedService(store, nil, quietLog)

	featured, err := svc.Save(context.Background(), json.RawMessage(`[{"id":"p1"}]`), json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Len(t, featured.Popular, 1)
	assert.Empty(t, featured.OnSale)
	store.AssertNumberOfCalls(t, "Save", 2)
}
