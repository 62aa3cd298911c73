package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/testutil"
)

func testSettings() IdempotencySettings {
	return IdempotencySettings{
		TTL:          time.Hour,
		WaitAttempts: 20,
		WaitDelay:    5 * time.Millisecond,
	}
}

func newCreateFixture() (*CreatePaymentUseCase, *testutil.MockPaymentRepository, *testutil.MockQueue, *testutil.MockIdempotencyStore) {
	repo := testutil.NewMockPaymentRepository()
	queue := testutil.NewMockQueue()
	idem := testutil.NewMockIdempotencyStore()
	uc := NewCreatePaymentUseCase(repo, idem, queue, testSettings())
	return uc, repo, queue, idem
}

func TestCreatePayment(t *testing.T) {
	uc, _, queue, _ := newCreateFixture()
	merchantID := uuid.New()

	result, err := uc.Execute(context.Background(), CreatePaymentRequest{
		MerchantID: merchantID,
		OrderRef:   "order-42",
		Amount:     2500,
		Method:     "card",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Payment)

	assert.False(t, result.Replayed)
	assert.Equal(t, http.StatusCreated, result.ResponseStatus)

	var body map[string]any
	require.NoError(t, json.Unmarshal(result.ResponseBody, &body))
	assert.Equal(t, "order-42", body["order_ref"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, float64(2500), body["amount"])

	enqueued := queue.EnqueuedPayments()
	require.Len(t, enqueued, 1)
	assert.Equal(t, result.Payment.ID, enqueued[0])
}

func TestCreatePayment_Replay(t *testing.T) {
	uc, _, queue, _ := newCreateFixture()
	merchantID := uuid.New()
	req := CreatePaymentRequest{
		MerchantID:     merchantID,
		OrderRef:       "order-42",
		Amount:         2500,
		Method:         "card",
		IdempotencyKey: "key-1",
	}

	first, err := uc.Execute(context.Background(), req)
	require.NoError(t, err)

	second, err := uc.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.ResponseStatus, second.ResponseStatus)
	assert.Equal(t, first.ResponseBody, second.ResponseBody, "replay must be byte-identical")
	assert.Len(t, queue.EnqueuedPayments(), 1, "replay must not enqueue again")
}

func TestCreatePayment_ConcurrentDuplicates(t *testing.T) {
	uc, repo, queue, _ := newCreateFixture()
	merchantID := uuid.New()
	req := CreatePaymentRequest{
		MerchantID:     merchantID,
		OrderRef:       "order-42",
		Amount:         2500,
		Method:         "card",
		IdempotencyKey: "key-concurrent",
	}

	const n = 20
	results := make([]*CreatePaymentResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = uc.Execute(context.Background(), req)
		}(i)
	}
	wg.Wait()

	var winner *CreatePaymentResult
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if !results[i].Replayed {
			require.Nil(t, winner, "exactly one submission may execute")
			winner = results[i]
		}
	}
	require.NotNil(t, winner)

	for _, r := range results {
		assert.Equal(t, winner.ResponseBody, r.ResponseBody)
	}

	assert.Len(t, queue.EnqueuedPayments(), 1, "one job for n submissions")

	created, err := repo.GetByID(context.Background(), winner.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), created.Amount)
}

func TestCreatePayment_ReleasesClaimOnValidationFailure(t *testing.T) {
	uc, _, _, _ := newCreateFixture()
	merchantID := uuid.New()

	_, err := uc.Execute(context.Background(), CreatePaymentRequest{
		MerchantID:     merchantID,
		OrderRef:       "order-42",
		Amount:         -1,
		Method:         "card",
		IdempotencyKey: "key-reuse",
	})
	var ve *domainErrors.ValidationError
	require.ErrorAs(t, err, &ve)

	// The key must be reusable after a failed request.
	result, err := uc.Execute(context.Background(), CreatePaymentRequest{
		MerchantID:     merchantID,
		OrderRef:       "order-42",
		Amount:         2500,
		Method:         "card",
		IdempotencyKey: "key-reuse",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, http.StatusCreated, result.ResponseStatus)
}
