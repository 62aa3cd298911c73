package testutil

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/idempotency"
	"github.com/rbarroso/clearway/internal/domain/merchant"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/internal/domain/webhook"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is a mock implementation of payment.Repository.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment

	CreateFunc                func(ctx context.Context, p *payment.Payment) error
	GetByIDFunc               func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	GetForMerchantFunc        func(ctx context.Context, merchantID, id uuid.UUID) (*payment.Payment, error)
	LockFunc                  func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	UpdateStatusIfPendingFunc func(ctx context.Context, id uuid.UUID, status payment.Status) (bool, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*payment.Payment),
	}
}

// Seed stores a payment without going through Create.
func (m *MockPaymentRepository) Seed(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepository) GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*payment.Payment, error) {
	if m.GetForMerchantFunc != nil {
		return m.GetForMerchantFunc(ctx, merchantID, id)
	}
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.MerchantID != merchantID {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return p, nil
}

func (m *MockPaymentRepository) Lock(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockPaymentRepository) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status payment.Status) (bool, error) {
	if m.UpdateStatusIfPendingFunc != nil {
		return m.UpdateStatusIfPendingFunc(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, domainErrors.ErrPaymentNotFound
	}
	if p.Status != payment.StatusPending {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

// --- Refund Repository Mock ---

// MockRefundRepository is a mock implementation of refund.Repository.
type MockRefundRepository struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]*refund.Refund
	byKey   map[string]uuid.UUID

	CreateFunc                 func(ctx context.Context, r *refund.Refund) error
	GetByIDFunc                func(ctx context.Context, id uuid.UUID) (*refund.Refund, error)
	SumOutstandingFunc         func(ctx context.Context, paymentID uuid.UUID) (int64, error)
	MarkProcessedIfPendingFunc func(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{
		refunds: make(map[uuid.UUID]*refund.Refund),
		byKey:   make(map[string]uuid.UUID),
	}
}

// Seed stores a refund without going through Create.
func (m *MockRefundRepository) Seed(r *refund.Refund) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[r.ID] = r
}

// All returns a snapshot of every stored refund.
func (m *MockRefundRepository) All() []*refund.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*refund.Refund, 0, len(m.refunds))
	for _, r := range m.refunds {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (m *MockRefundRepository) Create(ctx context.Context, r *refund.Refund) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.IdempotencyKey != nil {
		k := r.MerchantID.String() + ":" + *r.IdempotencyKey
		if _, exists := m.byKey[k]; exists {
			return domainErrors.ErrIdempotencyConflict
		}
		m.byKey[k] = r.ID
	}
	m.refunds[r.ID] = r
	return nil
}

func (m *MockRefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return nil, domainErrors.ErrRefundNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRefundRepository) GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*refund.Refund, error) {
	r, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.MerchantID != merchantID {
		return nil, domainErrors.ErrRefundNotFound
	}
	return r, nil
}

func (m *MockRefundRepository) ListByPayment(ctx context.Context, merchantID, paymentID uuid.UUID) ([]*refund.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*refund.Refund
	for _, r := range m.refunds {
		if r.MerchantID == merchantID && r.PaymentID == paymentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRefundRepository) SumOutstanding(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	if m.SumOutstandingFunc != nil {
		return m.SumOutstandingFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && r.CountsAgainstLimit() {
			sum += r.Amount
		}
	}
	return sum, nil
}

func (m *MockRefundRepository) MarkProcessedIfPending(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if m.MarkProcessedIfPendingFunc != nil {
		return m.MarkProcessedIfPendingFunc(ctx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return false, domainErrors.ErrRefundNotFound
	}
	if r.Status != refund.StatusPending {
		return false, nil
	}
	r.Status = refund.StatusProcessed
	r.ProcessedAt = &at
	return true, nil
}

// --- Idempotency Store Mock ---

// MockIdempotencyStore is an in-memory idempotency.Store. Claim and Record
// are atomic under one mutex, matching the database's guarantees.
type MockIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record

	ClaimFunc  func(ctx context.Context, merchantID uuid.UUID, key string, ttl time.Duration) (bool, *idempotency.Record, error)
	RecordFunc func(ctx context.Context, merchantID uuid.UUID, key string, status int, body []byte) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{records: make(map[string]*idempotency.Record)}
}

func (m *MockIdempotencyStore) storeKey(merchantID uuid.UUID, key string) string {
	return merchantID.String() + ":" + key
}

func (m *MockIdempotencyStore) Lookup(ctx context.Context, merchantID uuid.UUID, key string) (*idempotency.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[m.storeKey(merchantID, key)]
	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, merchantID uuid.UUID, key string, ttl time.Duration) (bool, *idempotency.Record, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, merchantID, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.storeKey(merchantID, key)
	if rec, ok := m.records[k]; ok && time.Now().Before(rec.ExpiresAt) {
		cp := *rec
		return false, &cp, nil
	}
	now := time.Now().UTC()
	m.records[k] = &idempotency.Record{
		Key:        key,
		MerchantID: merchantID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	return true, nil, nil
}

func (m *MockIdempotencyStore) Record(ctx context.Context, merchantID uuid.UUID, key string, status int, body []byte) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, merchantID, key, status, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[m.storeKey(merchantID, key)]
	if !ok {
		return domainErrors.ErrUnavailable
	}
	if rec.Completed() {
		if rec.ResponseStatus == status && bytes.Equal(rec.ResponseBody, body) {
			return nil
		}
		return domainErrors.ErrIdempotencyConflict
	}
	rec.ResponseStatus = status
	rec.ResponseBody = body
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, merchantID uuid.UUID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.storeKey(merchantID, key)
	if rec, ok := m.records[k]; ok && !rec.Completed() {
		delete(m.records, k)
	}
	return nil
}

// --- Merchant Repository Mock ---

// MockMerchantRepository is a mock implementation of merchant.Repository.
type MockMerchantRepository struct {
	mu        sync.Mutex
	merchants map[uuid.UUID]*merchant.Merchant

	GetEndpointFunc func(ctx context.Context, merchantID uuid.UUID) (*merchant.Endpoint, error)
}

func NewMockMerchantRepository() *MockMerchantRepository {
	return &MockMerchantRepository{merchants: make(map[uuid.UUID]*merchant.Merchant)}
}

func (m *MockMerchantRepository) Seed(mc *merchant.Merchant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merchants[mc.ID] = mc
}

func (m *MockMerchantRepository) GetByID(ctx context.Context, id uuid.UUID) (*merchant.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.merchants[id]
	if !ok {
		return nil, domainErrors.ErrMerchantNotFound
	}
	return mc, nil
}

func (m *MockMerchantRepository) GetEndpoint(ctx context.Context, merchantID uuid.UUID) (*merchant.Endpoint, error) {
	if m.GetEndpointFunc != nil {
		return m.GetEndpointFunc(ctx, merchantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.merchants[merchantID]
	if !ok || mc.WebhookURL == nil || mc.WebhookSecret == nil {
		return nil, nil
	}
	return &merchant.Endpoint{URL: *mc.WebhookURL, Secret: *mc.WebhookSecret}, nil
}

// --- Webhook Repository Mock ---

// MockWebhookRepository is an append-only in-memory audit log.
type MockWebhookRepository struct {
	mu       sync.Mutex
	attempts []*webhook.Attempt

	AppendFunc func(ctx context.Context, a *webhook.Attempt) error
}

func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{}
}

func (m *MockWebhookRepository) Append(ctx context.Context, a *webhook.Attempt) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attempts = append(m.attempts, &cp)
	return nil
}

func (m *MockWebhookRepository) GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*webhook.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == id && a.MerchantID == merchantID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrAttemptNotFound
}

func (m *MockWebhookRepository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]*webhook.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*webhook.Attempt
	for _, a := range m.attempts {
		if a.MerchantID == merchantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// All returns a snapshot of every appended attempt in insertion order.
func (m *MockWebhookRepository) All() []*webhook.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*webhook.Attempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// --- Queue Mock ---

// EnqueuedWebhook captures one EnqueueWebhook call.
type EnqueuedWebhook struct {
	Job   webhook.Job
	Delay time.Duration
}

// MockQueue records enqueued jobs for all three queues.
type MockQueue struct {
	mu       sync.Mutex
	payments []uuid.UUID
	refunds  []uuid.UUID
	webhooks []EnqueuedWebhook

	EnqueuePaymentFunc func(ctx context.Context, paymentID uuid.UUID) error
	EnqueueRefundFunc  func(ctx context.Context, refundID uuid.UUID) error
	EnqueueWebhookFunc func(ctx context.Context, job webhook.Job, delay time.Duration) error
}

func NewMockQueue() *MockQueue {
	return &MockQueue{}
}

func (m *MockQueue) EnqueuePayment(ctx context.Context, paymentID uuid.UUID) error {
	if m.EnqueuePaymentFunc != nil {
		return m.EnqueuePaymentFunc(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, paymentID)
	return nil
}

func (m *MockQueue) EnqueueRefund(ctx context.Context, refundID uuid.UUID) error {
	if m.EnqueueRefundFunc != nil {
		return m.EnqueueRefundFunc(ctx, refundID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds = append(m.refunds, refundID)
	return nil
}

func (m *MockQueue) EnqueueWebhook(ctx context.Context, job webhook.Job, delay time.Duration) error {
	if m.EnqueueWebhookFunc != nil {
		return m.EnqueueWebhookFunc(ctx, job, delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, EnqueuedWebhook{Job: job, Delay: delay})
	return nil
}

func (m *MockQueue) EnqueuedPayments() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.payments...)
}

func (m *MockQueue) EnqueuedRefunds() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.refunds...)
}

func (m *MockQueue) EnqueuedWebhooks() []EnqueuedWebhook {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EnqueuedWebhook(nil), m.webhooks...)
}

// --- Transaction Manager Mock ---

// MockTxManager serializes transactions with one mutex, standing in for the
// row lock the real TxManager takes on the payment. Checks and the insert
// inside a transaction therefore run atomically with respect to each other.
type MockTxManager struct {
	mu sync.Mutex

	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}
