package refund

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/internal/testutil"
)

type refundFixture struct {
	uc          *CreateRefundUseCase
	paymentRepo *testutil.MockPaymentRepository
	refundRepo  *testutil.MockRefundRepository
	queue       *testutil.MockQueue
}

func newRefundFixture() *refundFixture {
	paymentRepo := testutil.NewMockPaymentRepository()
	refundRepo := testutil.NewMockRefundRepository()
	queue := testutil.NewMockQueue()
	uc := NewCreateRefundUseCase(
		paymentRepo, refundRepo, testutil.NewMockIdempotencyStore(),
		testutil.NewMockTxManager(), queue,
		IdempotencySettings{TTL: time.Hour, WaitAttempts: 20, WaitDelay: 5 * time.Millisecond},
	)
	return &refundFixture{uc: uc, paymentRepo: paymentRepo, refundRepo: refundRepo, queue: queue}
}

func TestCreateRefund(t *testing.T) {
	f := newRefundFixture()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
	f.paymentRepo.Seed(p)

	result, err := f.uc.Execute(context.Background(), CreateRefundRequest{
		MerchantID: p.MerchantID,
		PaymentID:  p.ID,
		Amount:     400,
		Reason:     "duplicate charge",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Refund)

	assert.Equal(t, http.StatusCreated, result.ResponseStatus)
	assert.Equal(t, refund.StatusPending, result.Refund.Status)

	var body map[string]any
	require.NoError(t, json.Unmarshal(result.ResponseBody, &body))
	assert.Equal(t, p.ID.String(), body["payment_id"])
	assert.Equal(t, "pending", body["status"])

	enqueued := f.queue.EnqueuedRefunds()
	require.Len(t, enqueued, 1)
	assert.Equal(t, result.Refund.ID, enqueued[0])
}

func TestCreateRefund_EligibilityOrder(t *testing.T) {
	merchantID := uuid.New()

	tests := []struct {
		name       string
		setup      func(f *refundFixture) uuid.UUID // returns payment ID to refund
		amount     int64
		wantErr    error
		wantCode   string
		validation bool
	}{
		{
			name:    "unknown payment",
			setup:   func(f *refundFixture) uuid.UUID { return uuid.New() },
			amount:  100,
			wantErr: domainErrors.ErrPaymentNotFound,
		},
		{
			name: "foreign merchant payment reads as missing",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
				f.paymentRepo.Seed(p)
				return p.ID
			},
			amount:  100,
			wantErr: domainErrors.ErrPaymentNotFound,
		},
		{
			name: "pending payment",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusPending)
				f.paymentRepo.Seed(p)
				return p.ID
			},
			amount:   100,
			wantErr:  domainErrors.ErrInvalidPaymentState,
			wantCode: "INVALID_PAYMENT_STATE",
		},
		{
			name: "failed payment",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusFailed)
				f.paymentRepo.Seed(p)
				return p.ID
			},
			amount:   100,
			wantErr:  domainErrors.ErrInvalidPaymentState,
			wantCode: "INVALID_PAYMENT_STATE",
		},
		{
			name: "cumulative limit exceeded",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusSuccess)
				f.paymentRepo.Seed(p)
				f.refundRepo.Seed(testutil.NewTestRefund(p, 700, refund.StatusProcessed))
				return p.ID
			},
			amount:   400,
			wantErr:  domainErrors.ErrRefundLimitExceeded,
			wantCode: "REFUND_AMOUNT_EXCEEDS_LIMIT",
		},
		{
			name: "pending refunds hold the limit too",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusSuccess)
				f.paymentRepo.Seed(p)
				f.refundRepo.Seed(testutil.NewTestRefund(p, 600, refund.StatusPending))
				return p.ID
			},
			amount:   500,
			wantErr:  domainErrors.ErrRefundLimitExceeded,
			wantCode: "REFUND_AMOUNT_EXCEEDS_LIMIT",
		},
		{
			name: "cancelled refunds release the limit",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusSuccess)
				f.paymentRepo.Seed(p)
				f.refundRepo.Seed(testutil.NewTestRefund(p, 900, refund.StatusCancelled))
				return p.ID
			},
			amount: 1000,
		},
		{
			name: "zero amount",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusSuccess)
				f.paymentRepo.Seed(p)
				return p.ID
			},
			amount:     0,
			validation: true,
		},
		{
			name: "negative amount",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusSuccess)
				f.paymentRepo.Seed(p)
				return p.ID
			},
			amount:     -50,
			validation: true,
		},
		{
			name: "payment state reported before amount validity",
			setup: func(f *refundFixture) uuid.UUID {
				p := testutil.NewTestPayment(merchantID, 1000, payment.StatusPending)
				f.paymentRepo.Seed(p)
				return p.ID
			},
			amount:   -50,
			wantErr:  domainErrors.ErrInvalidPaymentState,
			wantCode: "INVALID_PAYMENT_STATE",
		},
		{
			name:    "existence reported before amount validity",
			setup:   func(f *refundFixture) uuid.UUID { return uuid.New() },
			amount:  -50,
			wantErr: domainErrors.ErrPaymentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefundFixture()
			paymentID := tt.setup(f)

			_, err := f.uc.Execute(context.Background(), CreateRefundRequest{
				MerchantID: merchantID,
				PaymentID:  paymentID,
				Amount:     tt.amount,
			})

			if tt.validation {
				var ve *domainErrors.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "amount", ve.Field)
				return
			}
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			if tt.wantCode != "" {
				var de *domainErrors.DomainError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.wantCode, de.Code)
			}
			assert.Empty(t, f.queue.EnqueuedRefunds(), "rejected refunds must not enqueue")
		})
	}
}

func TestCreateRefund_Replay(t *testing.T) {
	f := newRefundFixture()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
	f.paymentRepo.Seed(p)

	req := CreateRefundRequest{
		MerchantID:     p.MerchantID,
		PaymentID:      p.ID,
		Amount:         400,
		IdempotencyKey: "refund-key-1",
	}

	first, err := f.uc.Execute(context.Background(), req)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		replay, err := f.uc.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, replay.Replayed)
		assert.Equal(t, first.ResponseBody, replay.ResponseBody, "replay must be byte-identical")
	}

	assert.Len(t, f.refundRepo.All(), 1, "one row for repeated submissions")
	assert.Len(t, f.queue.EnqueuedRefunds(), 1, "one job for repeated submissions")
}

func TestCreateRefund_ConcurrentWritersRespectLimit(t *testing.T) {
	f := newRefundFixture()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
	f.paymentRepo.Seed(p)

	// 50 concurrent writers asking for 100 each against a 1000 payment:
	// exactly 10 can win, the rest must see the limit error.
	const writers = 50
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Execute(context.Background(), CreateRefundRequest{
				MerchantID: p.MerchantID,
				PaymentID:  p.ID,
				Amount:     100,
			})
		}(i)
	}
	wg.Wait()

	var created, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, domainErrors.ErrRefundLimitExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, created)
	assert.Equal(t, writers-10, rejected)

	var total int64
	for _, r := range f.refundRepo.All() {
		require.True(t, r.CountsAgainstLimit())
		total += r.Amount
	}
	assert.Equal(t, p.Amount, total, "outstanding refunds never exceed the payment")
}

func TestCreateRefund_ConcurrentOverlappingAmounts(t *testing.T) {
	f := newRefundFixture()
	p := testutil.NewTestPayment(uuid.New(), 1000, payment.StatusSuccess)
	f.paymentRepo.Seed(p)

	// Two concurrent 600s against a 1000 payment: exactly one wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Execute(context.Background(), CreateRefundRequest{
				MerchantID: p.MerchantID,
				PaymentID:  p.ID,
				Amount:     600,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, errors.Is(err, domainErrors.ErrRefundLimitExceeded))
		}
	}
	assert.Equal(t, 1, winners)
	assert.Len(t, f.refundRepo.All(), 1)
}
