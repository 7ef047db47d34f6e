package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/repository"
)

func orderKey(tenantID, orderID string) string {
	return tenantID + "/" + orderID
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) put(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[orderKey(order.TenantID, order.OrderID)] = cloneOrder(order)
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.LineItem(nil), o.Items...)
	c.PendingCheckpoints = make(map[domain.Stage]string, len(o.PendingCheckpoints))
	for k, v := range o.PendingCheckpoints {
		c.PendingCheckpoints[k] = v
	}
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

func (r *fakeOrderRepo) CreateTx(_ context.Context, _ *sql.Tx, order *domain.Order) error {
	r.put(order)
	return nil
}

func (r *fakeOrderRepo) Find(_ context.Context, tenantID, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderKey(tenantID, orderID)]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "order %s not found", orderID)
	}
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, upd repository.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderKey(upd.TenantID, upd.OrderID)]
	if !ok || order.Status != upd.ExpectedStatus {
		return false, nil
	}
	applyStatusUpdate(order, upd)
	return true, nil
}

func (r *fakeOrderRepo) SetCheckpoint(_ context.Context, tenantID, orderID string, stage domain.Stage, token string, expected, waiting domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderKey(tenantID, orderID)]
	if !ok || order.Status != expected {
		return false, nil
	}
	if order.PendingCheckpoints == nil {
		order.PendingCheckpoints = make(map[domain.Stage]string)
	}
	order.PendingCheckpoints[stage] = token
	order.Status = waiting
	order.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeOrderRepo) ResolveCheckpoint(_ context.Context, tenantID, orderID string, stage domain.Stage, upd repository.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderKey(tenantID, orderID)]
	if !ok {
		return false, nil
	}
	if _, pending := order.PendingCheckpoints[stage]; !pending {
		return false, nil
	}
	if order.Status != upd.ExpectedStatus {
		return false, nil
	}
	delete(order.PendingCheckpoints, stage)
	applyStatusUpdate(order, upd)
	return true, nil
}

func applyStatusUpdate(order *domain.Order, upd repository.StatusUpdate) {
	order.Status = upd.NewStatus
	if upd.ChefID != "" {
		order.ChefID = upd.ChefID
	}
	if upd.CourierID != "" {
		order.CourierID = upd.CourierID
	}
	if upd.Closed && order.ClosedAt == nil {
		t := time.Now().UTC()
		order.ClosedAt = &t
	}
	if upd.ClearCheckpoints {
		order.PendingCheckpoints = make(map[domain.Stage]string)
	}
	order.UpdatedAt = time.Now().UTC()
}

type fakeInventoryRepo struct {
	mu      sync.Mutex
	records map[string]*domain.InventoryRecord
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{records: make(map[string]*domain.InventoryRecord)}
}

func (r *fakeInventoryRepo) seed(tenantID, productID string, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[orderKey(tenantID, productID)] = &domain.InventoryRecord{
		TenantID:     tenantID,
		ProductID:    productID,
		CurrentStock: stock,
		MinThreshold: 10,
		MaxThreshold: 1000,
	}
}

func (r *fakeInventoryRepo) Find(_ context.Context, tenantID, productID string) (*domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[orderKey(tenantID, productID)]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "inventory record for product %s not found", productID)
	}
	c := *rec
	c.Movements = append([]domain.Movement(nil), rec.Movements...)
	return &c, nil
}

func (r *fakeInventoryRepo) EnsureRecord(_ context.Context, tenantID, productID string, minThreshold, maxThreshold int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := orderKey(tenantID, productID)
	if _, ok := r.records[key]; !ok {
		r.records[key] = &domain.InventoryRecord{
			TenantID:     tenantID,
			ProductID:    productID,
			CurrentStock: 0,
			MinThreshold: minThreshold,
			MaxThreshold: maxThreshold,
		}
	}
	return nil
}

func (r *fakeInventoryRepo) ApplyDelta(_ context.Context, tenantID, productID string, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[orderKey(tenantID, productID)]
	if !ok || rec.CurrentStock+delta < 0 {
		return false, nil
	}
	rec.CurrentStock += delta
	rec.LastUpdated = time.Now().UTC()
	return true, nil
}

func (r *fakeInventoryRepo) SetStock(_ context.Context, tenantID, productID string, stock int, minThreshold, maxThreshold *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[orderKey(tenantID, productID)]
	if !ok {
		return errors.Newf(errors.ErrCodeNotFound, "inventory record for product %s not found", productID)
	}
	rec.CurrentStock = stock
	if minThreshold != nil {
		rec.MinThreshold = *minThreshold
	}
	if maxThreshold != nil {
		rec.MaxThreshold = *maxThreshold
	}
	rec.LastUpdated = time.Now().UTC()
	return nil
}

func (r *fakeInventoryRepo) AppendMovement(_ context.Context, tenantID, productID string, movement domain.Movement, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[orderKey(tenantID, productID)]
	if !ok {
		return errors.Newf(errors.ErrCodeNotFound, "inventory record for product %s not found", productID)
	}
	rec.Movements = append([]domain.Movement{movement}, rec.Movements...)
	if len(rec.Movements) > limit {
		rec.Movements = rec.Movements[:limit]
	}
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*domain.StateHistoryEntry
	failErr error
}

func (r *fakeHistoryRepo) Append(_ context.Context, entry *domain.StateHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return r.failErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeHistoryRepo) ListByOrder(_ context.Context, tenantID, orderID string) ([]*domain.StateHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.StateHistoryEntry
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []*repository.OutboxEvent
}

func (r *fakeOutboxRepo) Insert(_ context.Context, event *repository.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) InsertTx(_ context.Context, _ *sql.Tx, event *repository.OutboxEvent) error {
	return r.Insert(context.Background(), event)
}

func (r *fakeOutboxRepo) FindPending(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*repository.OutboxEvent, 0, limit)
	for _, e := range r.events {
		if e.Status != "SENT" {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkSent(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == id {
			e.Status = "SENT"
		}
	}
	return nil
}

type fakeStarter struct {
	mu      sync.Mutex
	started []string
	err     error
}

func (s *fakeStarter) StartOrderWorkflow(_ context.Context, tenantID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.started = append(s.started, orderKey(tenantID, orderID))
	return nil
}

type resumeCall struct {
	token   []byte
	outcome CheckpointOutcome
}

type fakeResumer struct {
	mu    sync.Mutex
	calls []resumeCall
	err   error
}

func (r *fakeResumer) ResumeCheckpoint(_ context.Context, token []byte, outcome CheckpointOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, resumeCall{token: token, outcome: outcome})
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *fakeNotifier) Notify(_ context.Context, orderID, kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}
