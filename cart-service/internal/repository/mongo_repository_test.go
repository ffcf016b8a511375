package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fjod/shopgate/cart-service/internal/domain"
)

func setupTestDB(t *testing.T) *MongoRepository {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))
	return repo
}

func sampleCart(memberID int64) *domain.Cart {
	cart := domain.NewEmptyCart(memberID)
	cart.Items = []domain.CartItem{
		{SKU: "SKU123", Name: "Mug", Price: 1000, Quantity: 2, ProductImage: "mug.png",
			Attributes: map[string]string{"color": "white"}, Status: domain.ItemStatusActive},
	}
	cart.Recompute()
	return cart
}

func TestGetCart_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	cart, err := repo.GetCart(context.Background(), 404)

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestUpsertCart_CreatesAndReads(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	in := sampleCart(1)
	require.NoError(t, repo.UpsertCart(ctx, in))
	assert.False(t, in.CreatedAt.IsZero())

	out, err := repo.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, in.MemberID, out.MemberID)
	assert.Equal(t, in.Items, out.Items)
	assert.Equal(t, in.Summary, out.Summary)
	assert.Equal(t, domain.CartStatusActive, out.Status)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestUpsertCart_ReplacesWholeDocument(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := sampleCart(1)
	require.NoError(t, repo.UpsertCart(ctx, first))
	createdAt := first.CreatedAt

	second, err := repo.GetCart(ctx, 1)
	require.NoError(t, err)
	second.Items = []domain.CartItem{{SKU: "SKU999", Price: 5, Quantity: 1, Status: domain.ItemStatusActive}}
	second.Recompute()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, repo.UpsertCart(ctx, second))

	out, err := repo.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "SKU999", out.Items[0].SKU)
	assert.Equal(t, int64(5), out.Summary.Subtotal)
	assert.True(t, createdAt.Equal(out.CreatedAt))
	assert.True(t, out.UpdatedAt.After(createdAt))
}

func TestUpsertCart_EmptyCartKeepsItemsArray(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	cart := domain.NewEmptyCart(3)
	cart.Items = nil
	require.NoError(t, repo.UpsertCart(ctx, cart))

	out, err := repo.GetCart(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)
}

func TestContextCancellation(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetCart(ctx, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestCreateIndexes_NoExpiry(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	// a second call must be a no-op
	require.NoError(t, repo.CreateIndexes(ctx))

	cursor, err := repo.collection.Indexes().List(ctx)
	require.NoError(t, err)
	var indexes []bson.M
	require.NoError(t, cursor.All(ctx, &indexes))

	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		names = append(names, idx["name"].(string))
		assert.NotContains(t, idx, "expireAfterSeconds", "index %v must not expire carts", idx["name"])
	}
	assert.ElementsMatch(t, []string{"_id_", "items.sku_1"}, names)
}
