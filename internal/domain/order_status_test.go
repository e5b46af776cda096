package domain_test

import (
	"testing"

	"github.com/nikolayk812/footy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name      string
		current   domain.OrderStatus
		target    domain.OrderStatus
		wantError string
	}{
		{
			name:    "pending to confirmed",
			current: domain.OrderStatusPending,
			target:  domain.OrderStatusConfirmed,
		},
		{
			name:    "pending to cancelled",
			current: domain.OrderStatusPending,
			target:  domain.OrderStatusCancelled,
		},
		{
			name:    "processing to shipped",
			current: domain.OrderStatusProcessing,
			target:  domain.OrderStatusShipped,
		},
		{
			name:    "shipped to delivered",
			current: domain.OrderStatusShipped,
			target:  domain.OrderStatusDelivered,
		},
		{
			name:      "pending to shipped skips steps",
			current:   domain.OrderStatusPending,
			target:    domain.OrderStatusShipped,
			wantError: "cannot transition from pending to shipped",
		},
		{
			name:      "shipped cannot be cancelled",
			current:   domain.OrderStatusShipped,
			target:    domain.OrderStatusCancelled,
			wantError: "cannot transition from shipped to cancelled",
		},
		{
			name:      "cancelled is terminal",
			current:   domain.OrderStatusCancelled,
			target:    domain.OrderStatusConfirmed,
			wantError: "cannot transition from cancelled to confirmed",
		},
		{
			name:      "same status",
			current:   domain.OrderStatusConfirmed,
			target:    domain.OrderStatusConfirmed,
			wantError: "cannot transition from confirmed to confirmed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateTransition(tt.current, tt.target)
			if tt.wantError == "" {
				require.NoError(t, err)
				return
			}

			require.EqualError(t, err, tt.wantError)

			var transitionErr *domain.InvalidStateTransitionError
			require.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, tt.current, transitionErr.Current)
			assert.Equal(t, tt.target, transitionErr.Target)
		})
	}
}

func TestDeliveredRejectsEverything(t *testing.T) {
	for _, target := range domain.OrderStatuses() {
		assert.Error(t, domain.ValidateTransition(domain.OrderStatusDelivered, target), target)
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[domain.OrderStatus]bool{
		domain.OrderStatusDelivered: true,
		domain.OrderStatusCancelled: true,
	}

	for _, status := range domain.OrderStatuses() {
		assert.Equal(t, terminal[status], status.IsTerminal(), status)
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	allowed := domain.OrderStatusPending.AllowedTransitions()
	require.Len(t, allowed, 2)

	allowed[0] = domain.OrderStatusDelivered

	assert.Equal(t,
		[]domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
		domain.OrderStatusPending.AllowedTransitions())
	assert.Empty(t, domain.OrderStatusCancelled.AllowedTransitions())
}

func TestToOrderStatus(t *testing.T) {
	status, err := domain.ToOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, status)

	_, err = domain.ToOrderStatus("lost")
	require.Error(t, err)

	assert.Len(t, domain.OrderStatuses(), 6)
}
