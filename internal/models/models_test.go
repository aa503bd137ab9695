package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKitchenStatus(t *testing.T) {
	cases := map[string]KitchenStatus{
		"NOT_STARTED": KitchenStatusNotStarted,
		"NotStarted":  KitchenStatusNotStarted,
		"not started": KitchenStatusNotStarted,
		"not-started": KitchenStatusNotStarted,
		"preparing":   KitchenStatusPreparing,
		"PREPARING":   KitchenStatusPreparing,
		"Ready":       KitchenStatusReady,
		"completed":   KitchenStatusCompleted,
	}
	for raw, want := range cases {
		got, err := ParseKitchenStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "burning", "done", "NOT_STARTED_YET"} {
		_, err := ParseKitchenStatus(raw)
		assert.ErrorIs(t, err, ErrInvalidStatus, raw)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusPending.Terminal())
	assert.False(t, OrderStatusPreparing.Terminal())
}

func TestCheckoutMetadataItems(t *testing.T) {
	meta := &CheckoutMetadata{
		OrderItems: `[{"menuItemId":"burger","quantity":2},{"menuItemId":"drink","quantity":1}]`,
	}

	items, err := meta.Items()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "burger", items[0].MenuItemID)
	assert.Equal(t, 2, items[0].Quantity)

	bad := &CheckoutMetadata{OrderItems: `{"not":"a list"}`}
	_, err = bad.Items()
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestCouponExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Coupon{}).Expired(now))
	assert.False(t, (&Coupon{ExpiresAt: &future}).Expired(now))
	assert.True(t, (&Coupon{ExpiresAt: &past}).Expired(now))

	assert.False(t, (&UserCoupon{ExpiresAt: &future}).Expired(now))
	assert.True(t, (&UserCoupon{ExpiresAt: &past}).Expired(now))
}
