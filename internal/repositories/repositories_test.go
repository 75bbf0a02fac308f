package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"minimarket/internal/apperrors"
	"minimarket/internal/config"
	"minimarket/internal/database"
	"minimarket/internal/models"
	"minimarket/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		URL:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedUser(t *testing.T, repo repositories.UserRepository, name string, active bool) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "digest", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), u))
	if !active {
		require.NoError(t, repo.UpdateFields(context.Background(), u.ID, map[string]interface{}{"is_active": false}))
	}
	return u
}

func userRepos(t *testing.T) map[string]repositories.UserRepository {
	return map[string]repositories.UserRepository{
		"gorm":   repositories.NewGORMUserRepository(newTestDB(t), time.Second),
		"memory": repositories.NewMockUserRepository(),
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	for name, repo := range userRepos(t) {
		t.Run(name, func(t *testing.T) {
			seedUser(t, repo, "alice", true)
			err := repo.Create(context.Background(), &models.User{Username: "alice", PasswordHash: "x", IsActive: true})
			assert.ErrorIs(t, err, apperrors.ErrConflict)
		})
	}
}

func TestUserRepository_DeleteLastUser(t *testing.T) {
	for name, repo := range userRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			alice := seedUser(t, repo, "alice", true)

			err := repo.Delete(ctx, alice.ID)
			assert.ErrorIs(t, err, apperrors.ErrPreconditionFailed)

			bob := seedUser(t, repo, "bob", true)
			require.NoError(t, repo.Delete(ctx, bob.ID))

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestUserRepository_LastActiveUser(t *testing.T) {
	for name, repo := range userRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			alice := seedUser(t, repo, "alice", true)
			seedUser(t, repo, "bob", false)

			assert.ErrorIs(t, repo.SetActive(ctx, alice.ID, false), apperrors.ErrPreconditionFailed)
			assert.ErrorIs(t, repo.Delete(ctx, alice.ID), apperrors.ErrPreconditionFailed)

			got, err := repo.GetByID(ctx, alice.ID)
			require.NoError(t, err)
			assert.True(t, got.IsActive)
		})
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	for name, repo := range userRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := repo.GetByUsername(ctx, "ghost")
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
			assert.ErrorIs(t, repo.UpdateFields(ctx, "missing", map[string]interface{}{"email": "a@b.c"}), apperrors.ErrNotFound)
		})
	}
}

func TestProductRepository_DeleteLastProduct(t *testing.T) {
	db := newTestDB(t)
	repos := map[string]repositories.ProductRepository{
		"gorm":   repositories.NewGORMProductRepository(db, time.Second),
		"memory": repositories.NewMockProductRepository(),
	}
	cat := &models.Category{Name: "Bebidas"}
	require.NoError(t, repositories.NewGORMCategoryRepository(db, time.Second).Create(context.Background(), cat))

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := &models.Product{Name: "Agua", Price: 1.5, CategoryID: cat.ID, Status: models.ProductAvailable}
			require.NoError(t, repo.Create(ctx, first))

			assert.ErrorIs(t, repo.Delete(ctx, first.ID), apperrors.ErrPreconditionFailed)

			second := &models.Product{Name: "Jugo", Price: 2, CategoryID: cat.ID, Status: models.ProductAvailable}
			require.NoError(t, repo.Create(ctx, second))
			require.NoError(t, repo.Delete(ctx, first.ID))

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			assert.ErrorIs(t, repo.Delete(ctx, "missing"), apperrors.ErrNotFound)
		})
	}
}

// race runs fns at the same time and returns their errors in order.
func race(fns ...func() error) []error {
	errs := make([]error, len(fns))
	var start, done sync.WaitGroup
	start.Add(1)
	for i, fn := range fns {
		done.Add(1)
		go func(i int, fn func() error) {
			defer done.Done()
			start.Wait()
			errs[i] = fn()
		}(i, fn)
	}
	start.Done()
	done.Wait()
	return errs
}

// exactlyOneRefused asserts one call went through and the other hit the guard.
func exactlyOneRefused(t *testing.T, errs []error) {
	t.Helper()
	require.Len(t, errs, 2)
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], apperrors.ErrPreconditionFailed)
	} else {
		assert.ErrorIs(t, errs[0], apperrors.ErrPreconditionFailed)
		assert.NoError(t, errs[1])
	}
}

func TestProductRepository_ConcurrentDeletesKeepOneProduct(t *testing.T) {
	db := newTestDB(t)
	repos := map[string]repositories.ProductRepository{
		"gorm":   repositories.NewGORMProductRepository(db, 5*time.Second),
		"memory": repositories.NewMockProductRepository(),
	}
	cat := &models.Category{Name: "Bebidas"}
	require.NoError(t, repositories.NewGORMCategoryRepository(db, time.Second).Create(context.Background(), cat))

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := &models.Product{Name: "Agua", Price: 1, CategoryID: cat.ID, Status: models.ProductAvailable}
			b := &models.Product{Name: "Jugo", Price: 2, CategoryID: cat.ID, Status: models.ProductAvailable}
			require.NoError(t, repo.Create(ctx, a))
			require.NoError(t, repo.Create(ctx, b))

			exactlyOneRefused(t, race(
				func() error { return repo.Delete(ctx, a.ID) },
				func() error { return repo.Delete(ctx, b.ID) },
			))

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestUserRepository_ConcurrentDeactivationKeepsOneActive(t *testing.T) {
	for name, repo := range userRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			alice := seedUser(t, repo, "alice", true)
			bob := seedUser(t, repo, "bob", true)

			exactlyOneRefused(t, race(
				func() error { return repo.SetActive(ctx, alice.ID, false) },
				func() error { return repo.SetActive(ctx, bob.ID, false) },
			))

			a, err := repo.GetByID(ctx, alice.ID)
			require.NoError(t, err)
			b, err := repo.GetByID(ctx, bob.ID)
			require.NoError(t, err)
			assert.True(t, a.IsActive != b.IsActive, "exactly one user stays active")
		})
	}
}

func TestUserRepository_ConcurrentDeletesKeepOneUser(t *testing.T) {
	for name, repo := range userRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			alice := seedUser(t, repo, "alice", true)
			bob := seedUser(t, repo, "bob", true)

			exactlyOneRefused(t, race(
				func() error { return repo.Delete(ctx, alice.ID) },
				func() error { return repo.Delete(ctx, bob.ID) },
			))

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestGORMProductRepository_ListNewestFirstWithCategory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cats := repositories.NewGORMCategoryRepository(db, time.Second)
	repo := repositories.NewGORMProductRepository(db, time.Second)

	cat := &models.Category{Name: "Lacteos"}
	require.NoError(t, cats.Create(ctx, cat))

	older := &models.Product{Name: "Leche", Price: 3, CategoryID: cat.ID, Status: models.ProductAvailable, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Product{Name: "Queso", Price: 7, CategoryID: cat.ID, Status: models.ProductAvailable}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	list, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Queso", list[0].Name)
	require.NotNil(t, list[0].Category)
	assert.Equal(t, "Lacteos", list[0].Category.Name)

	newer.Price = 8
	newer.StockQuantity = 0
	require.NoError(t, repo.Update(ctx, newer))
	got, err := repo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.Price)
}

func TestGORMCategoryRepository_DeleteInUse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cats := repositories.NewGORMCategoryRepository(db, time.Second)
	products := repositories.NewGORMProductRepository(db, time.Second)

	used := &models.Category{Name: "Snacks"}
	free := &models.Category{Name: "Limpieza"}
	require.NoError(t, cats.Create(ctx, used))
	require.NoError(t, cats.Create(ctx, free))
	require.NoError(t, products.Create(ctx, &models.Product{Name: "Papas", Price: 2, CategoryID: used.ID, Status: models.ProductAvailable}))

	assert.ErrorIs(t, cats.Delete(ctx, used.ID), apperrors.ErrPreconditionFailed)
	require.NoError(t, cats.Delete(ctx, free.ID))

	list, err := cats.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Snacks", list[0].Name)

	assert.ErrorIs(t, cats.Create(ctx, &models.Category{Name: "Snacks"}), apperrors.ErrConflict)
}

func TestGORMSettingsRepositories_AfterEnsureDefaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := repositories.NewGORMAppConfigRepository(db, time.Second).Get(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, database.EnsureDefaults(ctx, db))
	require.NoError(t, database.EnsureDefaults(ctx, db))

	cfgRepo := repositories.NewGORMAppConfigRepository(db, time.Second)
	cfg, err := cfgRepo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Minimarket Digital", cfg.AppName)

	cfg.Theme = "green"
	require.NoError(t, cfgRepo.Save(ctx, cfg))
	cfg, err = cfgRepo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "green", cfg.Theme)

	featured, err := repositories.NewGORMFeaturedRepository(db, time.Second).Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, featured.Popular)
	assert.Empty(t, featured.OnSale)

	var count int64
	require.NoError(t, db.Model(&models.AppConfig{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
