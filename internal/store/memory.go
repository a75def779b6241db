package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/shadowfix/internal/domain"
)

// MemoryStore is an in-process EventStore used by tests and local
// development, following the same owned-map-plus-RWMutex shape as the
// teacher's cache.MemoryCache.
type MemoryStore struct {
	mu sync.RWMutex

	eventsByExecID map[string]domain.OrderEvent
	eventsByOrder  map[uuid.UUID][]domain.OrderEvent
	ordersByClOrd  map[string]domain.Order
	ordersByFixID  map[string]uuid.UUID
	locatesByReqID map[string]domain.LocateRequest
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		eventsByExecID: make(map[string]domain.OrderEvent),
		eventsByOrder:  make(map[uuid.UUID][]domain.OrderEvent),
		ordersByClOrd:  make(map[string]domain.Order),
		ordersByFixID:  make(map[string]uuid.UUID),
		locatesByReqID: make(map[string]domain.LocateRequest),
	}
}

func (s *MemoryStore) AppendEvent(ctx context.Context, ev domain.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.eventsByExecID[ev.ExecID]; exists {
		return ErrDuplicateExecID
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	s.eventsByExecID[ev.ExecID] = ev
	s.eventsByOrder[ev.OrderID] = append(s.eventsByOrder[ev.OrderID], ev)
	return nil
}

func (s *MemoryStore) UpsertOrderFromEvent(ctx context.Context, ev domain.OrderEvent, accountID uuid.UUID, primaryClOrdID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, existed := s.ordersByClOrd[ev.FixClOrdID]
	if existed && !ev.TransactTime.After(o.Current.EventTime) && !o.Current.EventTime.IsZero() {
		// A stale event arrived after a newer one already applied; keep
		// the existing projection untouched, per spec.md's latest-by-event-time rule.
		return o, nil
	}

	if !existed {
		id := ev.OrderID
		if id == uuid.Nil {
			id = uuid.New()
		}
		o = domain.Order{
			ID:             id,
			AccountID:      accountID,
			PrimaryClOrdID: primaryClOrdID,
			FixClOrdID:     ev.FixClOrdID,
			Symbol:         ev.Symbol,
			Side:           ev.Side,
			Qty:            ev.Qty,
			Price:          ev.Price,
			StopPx:         ev.StopPx,
			CreatedAt:      ev.TransactTime,
			RowStatus:      domain.OrderRowStatusNew,
		}
	}

	o.FixOrderID = ev.FixOrderID
	o.FixOrigClOrdID = ev.FixOrigClOrdID
	o.UpdatedAt = ev.TransactTime
	o.Current = domain.OrderAggregate{
		ExecType:  ev.ExecType,
		OrdStatus: ev.OrdStatus,
		CumQty:    ev.CumQty,
		LeavesQty: ev.LeavesQty,
		AvgPx:     ev.AvgPx,
		LastPx:    ev.LastPx,
		LastQty:   ev.LastQty,
		EventTime: ev.TransactTime,
	}

	s.ordersByClOrd[o.FixClOrdID] = o
	if o.FixOrderID != "" {
		s.ordersByFixID[o.FixOrderID] = o.ID
	}

	ev.OrderID = o.ID
	if _, exists := s.eventsByExecID[ev.ExecID]; exists {
		s.eventsByExecID[ev.ExecID] = ev
		events := s.eventsByOrder[o.ID]
		for i, e := range events {
			if e.ExecID == ev.ExecID {
				events[i] = ev
			}
		}
		s.eventsByOrder[o.ID] = events
	}

	return o, nil
}

func (s *MemoryStore) FindOrderByClOrdID(ctx context.Context, fixClOrdID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.ordersByClOrd[fixClOrdID]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) FindOrderByFixOrderID(ctx context.Context, fixOrderID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ordersByFixID[fixOrderID]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	for _, o := range s.ordersByClOrd {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, ErrOrderNotFound
}

func (s *MemoryStore) FindEventsForOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.eventsByOrder[orderID]
	out := make([]domain.OrderEvent, len(events))
	copy(out, events)
	return out, nil
}

func (s *MemoryStore) UpsertShadowOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	s.ordersByClOrd[o.FixClOrdID] = o
	if o.FixOrderID != "" {
		s.ordersByFixID[o.FixOrderID] = o.ID
	}
	return o, nil
}

func (s *MemoryStore) SaveLocateRequest(ctx context.Context, lr domain.LocateRequest) (domain.LocateRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lr.ID == uuid.Nil {
		lr.ID = uuid.New()
	}
	s.locatesByReqID[lr.FixQuoteReqID] = lr
	return lr, nil
}

func (s *MemoryStore) FindLocateRequest(ctx context.Context, quoteReqID string) (domain.LocateRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lr, ok := s.locatesByReqID[quoteReqID]
	if !ok {
		return domain.LocateRequest{}, ErrOrderNotFound
	}
	return lr, nil
}

func (s *MemoryStore) FindPendingLocatesOlderThan(ctx context.Context, cutoff time.Time) ([]domain.LocateRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LocateRequest
	for _, lr := range s.locatesByReqID {
		if lr.Status == domain.LocateStatusPending && lr.CreatedAt.Before(cutoff) {
			out = append(out, lr)
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
