package service

import (
	"context"
	"testing"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartAdd_MergesQuantities(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")

	_, err := env.cart.Add(ctx, u.ID, deskID, 2)
	require.NoError(t, err)
	view, err := env.cart.Add(ctx, u.ID, deskID, 3)
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Item.Quantity)
	assert.Equal(t, "995", view.Total().String())
	// adding to the cart does not reserve stock
	assert.Equal(t, 40, env.stock(t, deskID))
}

func TestCartAdd_MergedQuantityExceedsStock(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	p := env.product(t, "Scarce", "5.00", 4)

	_, err := env.cart.Add(ctx, u.ID, p.ID, 3)
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, u.ID, p.ID, 2)

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	n, err := env.cart.Count(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCartAdd_Rejections(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	hidden := env.product(t, "Hidden", "5.00", 10)
	require.NoError(t, env.catalog.Deactivate(ctx, hidden.ID))

	tests := []struct {
		name      string
		productID int64
		qty       int
		want      error
	}{
		{"zero quantity", deskID, 0, domain.ErrValidation},
		{"negative quantity", deskID, -1, domain.ErrValidation},
		{"unknown product", 9999, 1, domain.ErrNotFound},
		{"inactive product", hidden.ID, 1, domain.ErrNotFound},
		{"more than stock", vacuumID, 16, domain.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.cart.Add(ctx, u.ID, tt.productID, tt.qty)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCartUpdate(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	view, err := env.cart.Add(ctx, u.ID, vacuumID, 1)
	require.NoError(t, err)
	itemID := view.Lines[0].Item.ID

	view, err = env.cart.Update(ctx, u.ID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Lines[0].Item.Quantity)

	_, err = env.cart.Update(ctx, u.ID, itemID, 16)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	view, err = env.cart.Update(ctx, u.ID, itemID, 0)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
}

func TestCart_OtherUsersItemForbidden(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	john := env.user(t, "john")
	alice := env.user(t, "alice")
	view, err := env.cart.Add(ctx, john.ID, deskID, 1)
	require.NoError(t, err)
	itemID := view.Lines[0].Item.ID

	_, err = env.cart.Update(ctx, alice.ID, itemID, 2)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, env.cart.Remove(ctx, alice.ID, itemID), domain.ErrForbidden)
	assert.ErrorIs(t, env.cart.Remove(ctx, john.ID, 9999), domain.ErrNotFound)

	require.NoError(t, env.cart.Remove(ctx, john.ID, itemID))
	n, err := env.cart.Count(ctx, john.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCart_ClearAndCount(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")

	// no cart yet
	require.NoError(t, env.cart.Clear(ctx, u.ID))
	view, err := env.cart.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
	assert.True(t, view.Total().IsZero())

	_, err = env.cart.Add(ctx, u.ID, deskID, 2)
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, u.ID, coreJavaID, 3)
	require.NoError(t, err)

	n, err := env.cart.Count(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, env.cart.Clear(ctx, u.ID))
	n, err = env.cart.Count(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCartValidate(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	p := env.product(t, "Fragile", "3.00", 2)

	_, err := env.cart.Add(ctx, u.ID, p.ID, 2)
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, u.ID, deskID, 1)
	require.NoError(t, err)

	short, err := env.cart.Validate(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, short)
	assert.NotNil(t, short)

	_, err = env.catalog.AdjustStock(ctx, p.ID, -1)
	require.NoError(t, err)

	short, err = env.cart.Validate(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, p.ID, short[0].ProductID)
	assert.Equal(t, 2, short[0].Requested)
	assert.Equal(t, 1, short[0].Available)
}
