package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_CreatesPendingOrder(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")

	_, err := env.cart.Add(ctx, u.ID, iPhoneID, 2)
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, u.ID, deskID, 1)
	require.NoError(t, err)

	order, err := env.checkout.Checkout(ctx, u.ID, testShipping(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Regexp(t, `^ORD\d{14}[0-9A-F]{8}$`, order.OrderNumber)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "2797", order.Total().String())
	assert.Equal(t, 3, order.TotalQuantity())

	assert.Equal(t, 48, env.stock(t, iPhoneID))
	assert.Equal(t, 39, env.stock(t, deskID))

	view, err := env.cart.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())

	stored, err := env.orders.Get(ctx, u.ID, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.Total().String(), stored.Total().String())
	assert.Equal(t, "1 Main St, Springfield", stored.Shipping.Address)

	events, err := env.repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.OrderNumber, events[0].AggregateID)
}

func TestCheckout_TotalIsSumOfSubtotals(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")

	_, err := env.cart.Add(ctx, u.ID, macBookID, 1)
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, u.ID, coreJavaID, 3)
	require.NoError(t, err)

	order, err := env.checkout.Checkout(ctx, u.ID, testShipping(), "")
	require.NoError(t, err)

	sum := order.Items[0].Subtotal.Add(order.Items[1].Subtotal)
	assert.True(t, sum.Equal(order.Total()))
	assert.Equal(t, "1866", order.Total().String())
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := setupServices(t)
	u := env.user(t, "john")

	order, err := env.checkout.Checkout(context.Background(), u.ID, testShipping(), "")

	assert.ErrorIs(t, err, domain.ErrCartEmpty)
	assert.Nil(t, order)
}

func TestCheckout_ShortageLeavesEverythingUntouched(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	a := env.product(t, "Widget A", "10.00", 5)
	b := env.product(t, "Widget B", "20.00", 1)

	_, err := env.cart.Add(ctx, u.ID, a.ID, 3)
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, u.ID, b.ID, 1)
	require.NoError(t, err)
	// someone else buys the last B
	_, err = env.catalog.AdjustStock(ctx, b.ID, -1)
	require.NoError(t, err)

	order, err := env.checkout.Checkout(ctx, u.ID, testShipping(), "")

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Nil(t, order)
	var stockErr *domain.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, 0, stockErr.Available)

	assert.Equal(t, 5, env.stock(t, a.ID))
	view, err := env.cart.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 2)

	count, err := env.orders.CountForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCheckout_InvalidShipping(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	_, err := env.cart.Add(ctx, u.ID, deskID, 1)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, u.ID, domain.ShippingInfo{RecipientName: "John"}, "")

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 40, env.stock(t, deskID))
	n, err := env.cart.Count(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCheckout_IdempotencyKeyReturnsFirstOrder(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	_, err := env.cart.Add(ctx, u.ID, deskID, 2)
	require.NoError(t, err)

	first, err := env.checkout.Checkout(ctx, u.ID, testShipping(), "req-1")
	require.NoError(t, err)

	// cart is empty now, but the retry must not fail with ErrCartEmpty
	second, err := env.checkout.Checkout(ctx, u.ID, testShipping(), "req-1")
	require.NoError(t, err)

	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 38, env.stock(t, deskID))
	count, err := env.orders.CountForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCheckout_IdempotencyKeyTooLong(t *testing.T) {
	env := setupServices(t)
	u := env.user(t, "john")

	_, err := env.checkout.Checkout(context.Background(), u.ID, testShipping(), strings.Repeat("k", MaxIdempotencyKeyLength+1))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckout_ConcurrentNeverOversells(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	p := env.product(t, "Limited Edition", "50.00", 5)

	const buyers = 10
	users := make([]*domain.User, buyers)
	for i := range users {
		users[i] = env.user(t, "buyer"+string(rune('a'+i)))
		_, err := env.cart.Add(ctx, users[i].ID, p.ID, 1)
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := env.checkout.Checkout(ctx, userID, testShipping(), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, buyers-5, short)
	assert.Equal(t, 0, env.stock(t, p.ID))
}

func TestQuickOrder(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")

	order, err := env.checkout.QuickOrder(ctx, u.ID, vacuumID, 2, testShipping(), "")
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Dyson V15 Vacuum", order.Items[0].ProductName)
	assert.Equal(t, "1398", order.Total().String())
	assert.Equal(t, 13, env.stock(t, vacuumID))
}

func TestQuickOrder_FailureRollsBackCartAdd(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")

	_, err := env.checkout.QuickOrder(ctx, u.ID, vacuumID, 1, domain.ShippingInfo{}, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	n, err := env.cart.Count(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckout_OrderNumberCollisionRetriesWithIdempotencyKey(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	john := env.user(t, "john")
	alice := env.user(t, "alice")

	const taken = "ORD20240101120000AAAAAAAA"
	calls := 0
	env.checkout.orderNumber = func(now time.Time) string {
		calls++
		if calls <= 2 {
			return taken
		}
		return domain.NewOrderNumber(now)
	}

	_, err := env.cart.Add(ctx, john.ID, deskID, 1)
	require.NoError(t, err)
	first, err := env.checkout.Checkout(ctx, john.ID, testShipping(), "")
	require.NoError(t, err)
	require.Equal(t, taken, first.OrderNumber)

	_, err = env.cart.Add(ctx, alice.ID, deskID, 2)
	require.NoError(t, err)
	second, err := env.checkout.Checkout(ctx, alice.ID, testShipping(), "req-1")
	require.NoError(t, err)

	assert.NotEqual(t, taken, second.OrderNumber)
	assert.Equal(t, alice.ID, second.UserID)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 37, env.stock(t, deskID))
}

// checkoutOppositeOrders has two buyers hold the same two products in
// reverse cart order and check out at the same time, rounds times.
func checkoutOppositeOrders(t *testing.T, env *testEnv, rounds int) {
	t.Helper()
	ctx := context.Background()
	x := env.user(t, "xavier")
	y := env.user(t, "yvonne")
	a := env.product(t, "Widget A", "10", 2*rounds)
	b := env.product(t, "Widget B", "20", 2*rounds)

	for i := 0; i < rounds; i++ {
		_, err := env.cart.Add(ctx, x.ID, a.ID, 1)
		require.NoError(t, err)
		_, err = env.cart.Add(ctx, x.ID, b.ID, 1)
		require.NoError(t, err)
		_, err = env.cart.Add(ctx, y.ID, b.ID, 1)
		require.NoError(t, err)
		_, err = env.cart.Add(ctx, y.ID, a.ID, 1)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, buyer := range []int64{x.ID, y.ID} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[j] = env.checkout.Checkout(ctx, buyer, testShipping(), "")
			}()
		}
		wg.Wait()
		require.NoError(t, errs[0], "round %d", i)
		require.NoError(t, errs[1], "round %d", i)
	}

	assert.Zero(t, env.stock(t, a.ID))
	assert.Zero(t, env.stock(t, b.ID))
}

func TestCheckout_OppositeCartOrdersBothSucceed(t *testing.T) {
	checkoutOppositeOrders(t, setupServices(t), 5)
}

func TestCancel_RestocksEveryItem(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	u := env.user(t, "john")
	_, err := env.cart.Add(ctx, u.ID, vacuumID, 1)
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, u.ID, iPhoneID, 2)
	require.NoError(t, err)
	order, err := env.checkout.Checkout(ctx, u.ID, testShipping(), "")
	require.NoError(t, err)
	// item order follows the cart, not the lock order
	require.Equal(t, vacuumID, order.Items[0].ProductID)

	_, err = env.orders.Cancel(ctx, u.ID, order.OrderNumber)
	require.NoError(t, err)

	assert.Equal(t, 15, env.stock(t, vacuumID))
	assert.Equal(t, 50, env.stock(t, iPhoneID))
}
