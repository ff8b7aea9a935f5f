package restock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDraft, StatusSubmitted},
		{StatusDraft, StatusCancelled},
		{StatusSubmitted, StatusApprovedPendingSupplier},
		{StatusSubmitted, StatusCancelled},
		{StatusApprovedPendingSupplier, StatusSupplierContacted},
		{StatusApprovedPendingSupplier, StatusCancelled},
		{StatusSupplierContacted, StatusPartiallyReceived},
		{StatusSupplierContacted, StatusFullyReceived},
		{StatusPartiallyReceived, StatusFullyReceived},
	}
	for _, tc := range allowed {
		require.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusDraft, StatusApprovedPendingSupplier},
		{StatusDraft, StatusFullyReceived},
		{StatusSubmitted, StatusSupplierContacted},
		{StatusApprovedPendingSupplier, StatusSubmitted},
		{StatusSupplierContacted, StatusCancelled},
		{StatusPartiallyReceived, StatusCancelled},
		{StatusPartiallyReceived, StatusSupplierContacted},
		{StatusFullyReceived, StatusCancelled},
		{StatusFullyReceived, StatusPartiallyReceived},
		{StatusCancelled, StatusSubmitted},
		{StatusCancelled, StatusDraft},
	}
	for _, tc := range denied {
		require.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	require.Empty(t, transitions[StatusFullyReceived])
	require.Empty(t, transitions[StatusCancelled])
}

func TestReceivingTarget(t *testing.T) {
	ten := int64(10)
	twenty := int64(20)

	items := []RequestItem{
		{ApprovedQty: &ten, ReceivedQty: 10},
		{ApprovedQty: &twenty, ReceivedQty: 5},
	}
	require.Equal(t, StatusPartiallyReceived, receivingTarget(items))

	items[1].ReceivedQty = 20
	require.Equal(t, StatusFullyReceived, receivingTarget(items))

	// Unapproved lines keep the request partial regardless of quantities.
	require.Equal(t, StatusPartiallyReceived, receivingTarget([]RequestItem{{ReceivedQty: 5}}))
}

func TestCanReceive(t *testing.T) {
	require.True(t, canReceive(StatusSupplierContacted))
	require.True(t, canReceive(StatusPartiallyReceived))
	require.False(t, canReceive(StatusDraft))
	require.False(t, canReceive(StatusSubmitted))
	require.False(t, canReceive(StatusApprovedPendingSupplier))
	require.False(t, canReceive(StatusFullyReceived))
	require.False(t, canReceive(StatusCancelled))
}
