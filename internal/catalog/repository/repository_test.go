package repository_test

import (
	"context"
	"testing"

	"github.com/fjod/go_storefront/internal/catalog/domain"
	"github.com/fjod/go_storefront/internal/catalog/repository"
	"github.com/fjod/go_storefront/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	conn, err := db.OpenAndMigrate(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return repository.NewRepository(conn)
}

func TestGetAllProducts_ReturnsSeededCatalog(t *testing.T) {
	repo := setupTestRepo(t)

	products, err := repo.GetAllProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 8)
	assert.Equal(t, "classic-cotton-tee", products[0].Slug)
}

func TestGetAllProducts_CancelledContext(t *testing.T) {
	repo := setupTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetAllProducts(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetProduct_ConvertsPriceToMinorUnits(t *testing.T) {
	repo := setupTestRepo(t)

	p, err := repo.GetProduct(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, "Classic Cotton Tee", p.Name)
	assert.Equal(t, int64(1999), p.Price)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, []string{"red", "blue", "black"}, p.Colors)
	assert.Equal(t, []string{"S", "M", "L", "XL"}, p.Sizes)
	assert.Len(t, p.Images, 2)
	assert.Nil(t, p.Stock)
}

func TestGetProduct_StockAndEmptyLists(t *testing.T) {
	repo := setupTestRepo(t)

	p, err := repo.GetProduct(context.Background(), "2")
	require.NoError(t, err)
	require.NotNil(t, p.Stock)
	assert.Equal(t, 25, *p.Stock)
	assert.Nil(t, p.Images)
	assert.Equal(t, []string{"/images/hoodie.jpg"}, p.ImageList())
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetProduct(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestGetProductBySlug(t *testing.T) {
	repo := setupTestRepo(t)

	p, err := repo.GetProductBySlug(context.Background(), "leather-wallet")
	require.NoError(t, err)
	assert.Equal(t, "6", p.ID)
	assert.Equal(t, int64(3995), p.Price)

	_, err = repo.GetProductBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestListByCategory(t *testing.T) {
	repo := setupTestRepo(t)

	products, err := repo.ListByCategory(context.Background(), "accessories")
	require.NoError(t, err)
	require.Len(t, products, 2)
	for _, p := range products {
		assert.Equal(t, "accessories", p.Category)
	}

	none, err := repo.ListByCategory(context.Background(), "garden")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCategories(t *testing.T) {
	repo := setupTestRepo(t)

	categories, err := repo.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{
		{Name: "Apparel", Slug: "apparel"},
		{Name: "Accessories", Slug: "accessories"},
		{Name: "Home", Slug: "home"},
	}, categories)
}
