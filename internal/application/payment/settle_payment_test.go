package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/settlement"
	"github.com/rbarroso/clearway/internal/testutil"
)

func fixedOutcome(success bool) settlement.Outcome {
	return settlement.OutcomeFunc(func(ctx context.Context, method string) (bool, error) {
		return success, nil
	})
}

func TestSettlePayment(t *testing.T) {
	tests := []struct {
		name       string
		success    bool
		wantStatus payment.Status
		wantEvent  string
	}{
		{name: "successful settlement", success: true, wantStatus: payment.StatusSuccess, wantEvent: "payment.success"},
		{name: "failed settlement", success: false, wantStatus: payment.StatusFailed, wantEvent: "payment.failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewMockPaymentRepository()
			queue := testutil.NewMockQueue()
			p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusPending)
			repo.Seed(p)

			uc := NewSettlePaymentUseCase(repo, queue, fixedOutcome(tt.success), 0)
			require.NoError(t, uc.Execute(context.Background(), p.ID))

			settled, err := repo.GetByID(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, settled.Status)

			jobs := queue.EnqueuedWebhooks()
			require.Len(t, jobs, 1)
			assert.Equal(t, tt.wantEvent, jobs[0].Job.Event)
			assert.Equal(t, 1, jobs[0].Job.Attempt)
			assert.Equal(t, p.MerchantID, jobs[0].Job.MerchantID)
			assert.Equal(t, p.ID.String(), jobs[0].Job.Data["id"])
		})
	}
}

func TestSettlePayment_DuplicateDelivery(t *testing.T) {
	repo := testutil.NewMockPaymentRepository()
	queue := testutil.NewMockQueue()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusPending)
	repo.Seed(p)

	uc := NewSettlePaymentUseCase(repo, queue, fixedOutcome(true), 0)
	require.NoError(t, uc.Execute(context.Background(), p.ID))

	// Redelivery of the same job: outcome now says failed, but the terminal
	// status must not move. The webhook is still re-emitted, because the
	// first delivery's enqueue may never have happened.
	uc2 := NewSettlePaymentUseCase(repo, queue, fixedOutcome(false), 0)
	require.NoError(t, uc2.Execute(context.Background(), p.ID))

	settled, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, settled.Status, "terminal status is monotonic")

	jobs := queue.EnqueuedWebhooks()
	require.Len(t, jobs, 2)
	assert.Equal(t, "payment.success", jobs[0].Job.Event)
	assert.Equal(t, "payment.success", jobs[1].Job.Event, "duplicate settle re-emits the settled status")
}

func TestSettlePayment_LostRace(t *testing.T) {
	repo := testutil.NewMockPaymentRepository()
	queue := testutil.NewMockQueue()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusPending)
	repo.Seed(p)

	// The guarded update reports no rows: another instance settled first.
	repo.UpdateStatusIfPendingFunc = func(ctx context.Context, id uuid.UUID, status payment.Status) (bool, error) {
		repo.UpdateStatusIfPendingFunc = nil
		p.Status = payment.StatusFailed
		return false, nil
	}

	uc := NewSettlePaymentUseCase(repo, queue, fixedOutcome(true), 0)
	require.NoError(t, uc.Execute(context.Background(), p.ID))

	jobs := queue.EnqueuedWebhooks()
	require.Len(t, jobs, 1)
	assert.Equal(t, "payment.failed", jobs[0].Job.Event, "webhook reflects the winner's status")
}
