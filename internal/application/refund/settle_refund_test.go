package refund

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/internal/testutil"
)

func TestSettleRefund(t *testing.T) {
	refundRepo := testutil.NewMockRefundRepository()
	queue := testutil.NewMockQueue()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
	r := testutil.NewTestRefund(p, 400, refund.StatusPending)
	refundRepo.Seed(r)

	uc := NewSettleRefundUseCase(refundRepo, queue, 0)
	require.NoError(t, uc.Execute(context.Background(), r.ID))

	settled, err := refundRepo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusProcessed, settled.Status)
	assert.NotNil(t, settled.ProcessedAt)

	jobs := queue.EnqueuedWebhooks()
	require.Len(t, jobs, 1)
	assert.Equal(t, "refund.processed", jobs[0].Job.Event)
	assert.Equal(t, r.ID.String(), jobs[0].Job.Data["id"])
	assert.Equal(t, p.ID.String(), jobs[0].Job.Data["payment_id"])
}

func TestSettleRefund_DuplicateDelivery(t *testing.T) {
	refundRepo := testutil.NewMockRefundRepository()
	queue := testutil.NewMockQueue()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
	r := testutil.NewTestRefund(p, 400, refund.StatusPending)
	refundRepo.Seed(r)

	uc := NewSettleRefundUseCase(refundRepo, queue, 0)
	require.NoError(t, uc.Execute(context.Background(), r.ID))
	require.NoError(t, uc.Execute(context.Background(), r.ID))

	settled, err := refundRepo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusProcessed, settled.Status)

	// Both deliveries emit the webhook; the queue is at-least-once anyway.
	assert.Len(t, queue.EnqueuedWebhooks(), 2)
}

func TestSettleRefund_CancelledEmitsNothing(t *testing.T) {
	refundRepo := testutil.NewMockRefundRepository()
	queue := testutil.NewMockQueue()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
	r := testutil.NewTestRefund(p, 400, refund.StatusCancelled)
	refundRepo.Seed(r)

	uc := NewSettleRefundUseCase(refundRepo, queue, 0)
	require.NoError(t, uc.Execute(context.Background(), r.ID))

	unchanged, err := refundRepo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusCancelled, unchanged.Status)
	assert.Empty(t, queue.EnqueuedWebhooks())
}
