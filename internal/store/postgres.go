package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epic1st/shadowfix/internal/domain"
)

// PostgresStore is the production EventStore, backed by a pgx connection
// pool. The teacher repo declared jackc/pgx/v5 but never imported it
// anywhere (its actual database code used database/sql + lib/pq); this
// promotes pgx to the store's real driver, per DESIGN.md.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool against dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) AppendEvent(ctx context.Context, ev domain.OrderEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_events (
			id, order_id, exec_id, exec_type, ord_status, fix_order_id, fix_clordid,
			fix_origclordid, symbol, side, qty, price, stop_px, avg_px, last_px,
			last_qty, cum_qty, leaves_qty, transact_time, session_id, raw_message
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (exec_id) DO NOTHING`,
		ev.ID, nullUUID(ev.OrderID), ev.ExecID, ev.ExecType, ev.OrdStatus, ev.FixOrderID, ev.FixClOrdID,
		ev.FixOrigClOrdID, ev.Symbol, ev.Side, ev.Qty, ev.Price, ev.StopPx, ev.AvgPx, ev.LastPx,
		ev.LastQty, ev.CumQty, ev.LeavesQty, ev.TransactTime, ev.SessionID, ev.RawMessage,
	)
	if err != nil {
		return err
	}
	// pgx's CommandTag doesn't directly distinguish "0 rows due to conflict"
	// from other no-op cases here, so duplicate detection is done with a
	// follow-up existence check rather than relying on RowsAffected alone.
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM order_events WHERE exec_id = $1 AND id = $2`, ev.ExecID, ev.ID).Scan(&count); err == nil && count == 0 {
		return ErrDuplicateExecID
	}
	return nil
}

func (s *PostgresStore) UpsertOrderFromEvent(ctx context.Context, ev domain.OrderEvent, accountID uuid.UUID, primaryClOrdID string) (domain.Order, error) {
	newID := ev.OrderID
	if newID == uuid.Nil {
		newID = uuid.New()
	}

	var o domain.Order
	err := s.pool.QueryRow(ctx, `
		INSERT INTO orders (
			id, account_id, primary_clordid, fix_order_id, fix_clordid, fix_origclordid,
			symbol, side, qty, price, stop_px, row_status,
			exec_type, ord_status, cum_qty, leaves_qty, avg_px, last_px, last_qty, event_time,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'NEW',$12,$13,$14,$15,$16,$17,$18,$19,$19,$19)
		ON CONFLICT (fix_clordid) DO UPDATE SET
			fix_order_id = EXCLUDED.fix_order_id,
			fix_origclordid = EXCLUDED.fix_origclordid,
			exec_type = EXCLUDED.exec_type,
			ord_status = EXCLUDED.ord_status,
			cum_qty = EXCLUDED.cum_qty,
			leaves_qty = EXCLUDED.leaves_qty,
			avg_px = EXCLUDED.avg_px,
			last_px = EXCLUDED.last_px,
			last_qty = EXCLUDED.last_qty,
			event_time = EXCLUDED.event_time,
			updated_at = EXCLUDED.updated_at
		WHERE orders.event_time IS NULL OR orders.event_time <= EXCLUDED.event_time
		RETURNING id, account_id, primary_clordid, fix_order_id, fix_clordid, fix_origclordid,
			symbol, side, qty, price, stop_px, row_status,
			exec_type, ord_status, cum_qty, leaves_qty, avg_px, last_px, last_qty, event_time,
			created_at, updated_at`,
		newID, accountID, primaryClOrdID, ev.FixOrderID, ev.FixClOrdID, ev.FixOrigClOrdID,
		ev.Symbol, ev.Side, ev.Qty, ev.Price, ev.StopPx,
		ev.ExecType, ev.OrdStatus, ev.CumQty, ev.LeavesQty, ev.AvgPx, ev.LastPx, ev.LastQty, ev.TransactTime,
	).Scan(
		&o.ID, &o.AccountID, &o.PrimaryClOrdID, &o.FixOrderID, &o.FixClOrdID, &o.FixOrigClOrdID,
		&o.Symbol, &o.Side, &o.Qty, &o.Price, &o.StopPx, &o.RowStatus,
		&o.Current.ExecType, &o.Current.OrdStatus, &o.Current.CumQty, &o.Current.LeavesQty,
		&o.Current.AvgPx, &o.Current.LastPx, &o.Current.LastQty, &o.Current.EventTime,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// The WHERE clause rejected the update because a newer event already
		// applied; fetch and return the current row unchanged.
		return s.FindOrderByClOrdID(ctx, ev.FixClOrdID)
	}
	return o, err
}

func (s *PostgresStore) FindOrderByClOrdID(ctx context.Context, fixClOrdID string) (domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, account_id, primary_clordid, fix_order_id, fix_clordid, fix_origclordid,
			symbol, side, qty, price, stop_px, row_status,
			exec_type, ord_status, cum_qty, leaves_qty, avg_px, last_px, last_qty, event_time,
			created_at, updated_at
		FROM orders WHERE fix_clordid = $1`, fixClOrdID).Scan(
		&o.ID, &o.AccountID, &o.PrimaryClOrdID, &o.FixOrderID, &o.FixClOrdID, &o.FixOrigClOrdID,
		&o.Symbol, &o.Side, &o.Qty, &o.Price, &o.StopPx, &o.RowStatus,
		&o.Current.ExecType, &o.Current.OrdStatus, &o.Current.CumQty, &o.Current.LeavesQty,
		&o.Current.AvgPx, &o.Current.LastPx, &o.Current.LastQty, &o.Current.EventTime,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, err
}

func (s *PostgresStore) FindOrderByFixOrderID(ctx context.Context, fixOrderID string) (domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, account_id, primary_clordid, fix_order_id, fix_clordid, fix_origclordid,
			symbol, side, qty, price, stop_px, row_status,
			exec_type, ord_status, cum_qty, leaves_qty, avg_px, last_px, last_qty, event_time,
			created_at, updated_at
		FROM orders WHERE fix_order_id = $1 ORDER BY updated_at DESC LIMIT 1`, fixOrderID).Scan(
		&o.ID, &o.AccountID, &o.PrimaryClOrdID, &o.FixOrderID, &o.FixClOrdID, &o.FixOrigClOrdID,
		&o.Symbol, &o.Side, &o.Qty, &o.Price, &o.StopPx, &o.RowStatus,
		&o.Current.ExecType, &o.Current.OrdStatus, &o.Current.CumQty, &o.Current.LeavesQty,
		&o.Current.AvgPx, &o.Current.LastPx, &o.Current.LastQty, &o.Current.EventTime,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, err
}

func (s *PostgresStore) FindEventsForOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, exec_id, exec_type, ord_status, fix_order_id, fix_clordid,
			fix_origclordid, symbol, side, qty, price, stop_px, avg_px, last_px,
			last_qty, cum_qty, leaves_qty, transact_time, session_id, raw_message
		FROM order_events WHERE order_id = $1 ORDER BY transact_time ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderEvent
	for rows.Next() {
		var ev domain.OrderEvent
		if err := rows.Scan(
			&ev.ID, &ev.OrderID, &ev.ExecID, &ev.ExecType, &ev.OrdStatus, &ev.FixOrderID, &ev.FixClOrdID,
			&ev.FixOrigClOrdID, &ev.Symbol, &ev.Side, &ev.Qty, &ev.Price, &ev.StopPx, &ev.AvgPx, &ev.LastPx,
			&ev.LastQty, &ev.CumQty, &ev.LeavesQty, &ev.TransactTime, &ev.SessionID, &ev.RawMessage,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertShadowOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (id, account_id, primary_clordid, fix_clordid, symbol, side,
			ord_type, time_in_force, qty, price, stop_px, ex_destination, row_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		ON CONFLICT (fix_clordid) DO UPDATE SET row_status = EXCLUDED.row_status, updated_at = EXCLUDED.updated_at`,
		o.ID, o.AccountID, o.PrimaryClOrdID, o.FixClOrdID, o.Symbol, o.Side,
		o.OrdType, o.TimeInForce, o.Qty, o.Price, o.StopPx, o.ExDestination, o.RowStatus, o.CreatedAt,
	)
	return o, err
}

func (s *PostgresStore) SaveLocateRequest(ctx context.Context, lr domain.LocateRequest) (domain.LocateRequest, error) {
	if lr.ID == uuid.Nil {
		lr.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO locate_requests (id, order_id, account_id, symbol, quantity, status,
			fix_quotereqid, locate_route, offer_px, offer_size, approved_qty, response_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
		ON CONFLICT (fix_quotereqid) DO UPDATE SET
			status = EXCLUDED.status, offer_px = EXCLUDED.offer_px, offer_size = EXCLUDED.offer_size,
			approved_qty = EXCLUDED.approved_qty, response_message = EXCLUDED.response_message,
			updated_at = EXCLUDED.updated_at`,
		lr.ID, lr.OrderID, lr.AccountID, lr.Symbol, lr.Quantity, lr.Status,
		lr.FixQuoteReqID, lr.LocateRoute, lr.OfferPx, lr.OfferSize, lr.ApprovedQty, lr.ResponseMessage, lr.CreatedAt,
	)
	return lr, err
}

func (s *PostgresStore) FindLocateRequest(ctx context.Context, quoteReqID string) (domain.LocateRequest, error) {
	var lr domain.LocateRequest
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, account_id, symbol, quantity, status, fix_quotereqid,
			locate_route, offer_px, offer_size, approved_qty, response_message, created_at, updated_at
		FROM locate_requests WHERE fix_quotereqid = $1`, quoteReqID).Scan(
		&lr.ID, &lr.OrderID, &lr.AccountID, &lr.Symbol, &lr.Quantity, &lr.Status, &lr.FixQuoteReqID,
		&lr.LocateRoute, &lr.OfferPx, &lr.OfferSize, &lr.ApprovedQty, &lr.ResponseMessage, &lr.CreatedAt, &lr.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LocateRequest{}, ErrOrderNotFound
	}
	return lr, err
}

func (s *PostgresStore) FindPendingLocatesOlderThan(ctx context.Context, cutoff time.Time) ([]domain.LocateRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, account_id, symbol, quantity, status, fix_quotereqid,
			locate_route, offer_px, offer_size, approved_qty, response_message, created_at, updated_at
		FROM locate_requests WHERE status = 'PENDING' AND created_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LocateRequest
	for rows.Next() {
		var lr domain.LocateRequest
		if err := rows.Scan(
			&lr.ID, &lr.OrderID, &lr.AccountID, &lr.Symbol, &lr.Quantity, &lr.Status, &lr.FixQuoteReqID,
			&lr.LocateRoute, &lr.OfferPx, &lr.OfferSize, &lr.ApprovedQty, &lr.ResponseMessage, &lr.CreatedAt, &lr.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
