package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
	"github.com/georgemunganga/campo-directo-backend/internal/platform/database"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const orderColumns = `id, order_number, buyer_id, seller_id, total, status,
	delivery_address, contact_phone, scheduled_date, scheduled_time, payment_method,
	buyer_notes, seller_notes, seller_rating, buyer_rating, seller_rating_comment, buyer_rating_comment,
	created_at, confirmed_at, preparing_at, ready_at, completed_at, cancelled_at, updated_at`

const lineColumns = `id, order_id, position, product_id, quantity, unit_price, subtotal, notes`

// CreateOrder inserts the order and all its lines inside a single transaction.
func (r *postgresRepo) CreateOrder(ctx context.Context, o *Order) error {
	return database.WithinTx(ctx, r.db, func(ctx context.Context) error {
		conn := database.Conn(ctx, r.db)
		_, err := conn.ExecContext(ctx, `
			INSERT INTO orders
			  (id, order_number, buyer_id, seller_id, total, status,
			   delivery_address, contact_phone, scheduled_date, scheduled_time, payment_method,
			   buyer_notes, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`,
			o.ID, o.OrderNumber, o.BuyerID, o.SellerID, o.Total, o.Status,
			o.DeliveryAddress, o.ContactPhone, o.ScheduledDate, o.ScheduledTime, o.PaymentMethod,
			o.BuyerNotes, o.CreatedAt)
		if database.IsUniqueViolation(err) {
			return ErrDuplicateNumber
		}
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, l := range o.Lines {
			_, err = conn.ExecContext(ctx, `
				INSERT INTO order_lines
				  (id, order_id, position, product_id, quantity, unit_price, subtotal, notes)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				l.ID, o.ID, l.Position, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal, l.Notes)
			if err != nil {
				return fmt.Errorf("insert order_line %d: %w", l.Position, err)
			}
		}
		return nil
	})
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r *postgresRepo) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *postgresRepo) getOrder(ctx context.Context, query string, id uuid.UUID) (*Order, error) {
	conn := database.Conn(ctx, r.db)
	o := &Order{}
	err := scanOrder(conn.QueryRowContext(ctx, query, id), o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListOrders(ctx context.Context, actor Actor, f ListFilter) ([]*Order, int, error) {
	partyCol, _, _, err := roleColumns(actor.Role)
	if err != nil {
		return nil, 0, err
	}

	where := []string{partyCol + " = $1"}
	args := []any{actor.UserID}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	conn := database.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, f.Limit, f.Offset())
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o := &Order{}
		if err := scanOrder(rows, o); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, o *Order, from Status) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders
		SET status=$1, confirmed_at=$2, preparing_at=$3, ready_at=$4, completed_at=$5, cancelled_at=$6,
		    buyer_notes=$7, seller_notes=$8, updated_at=$9
		WHERE id=$10 AND status=$11`,
		o.Status, o.ConfirmedAt, o.PreparingAt, o.ReadyAt, o.CompletedAt, o.CancelledAt,
		o.BuyerNotes, o.SellerNotes, o.UpdatedAt, o.ID, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *postgresRepo) SaveRating(ctx context.Context, id uuid.UUID, by Party, stars int, comment string) error {
	var ratingCol, commentCol string
	switch by {
	case PartyBuyer:
		ratingCol, commentCol = "seller_rating", "seller_rating_comment"
	case PartySeller:
		ratingCol, commentCol = "buyer_rating", "buyer_rating_comment"
	default:
		return ErrUnauthorized
	}

	res, err := database.Conn(ctx, r.db).ExecContext(ctx, fmt.Sprintf(`
		UPDATE orders SET %[1]s=$1, %[2]s=$2, updated_at=NOW()
		WHERE id=$3 AND status='completed' AND %[1]s IS NULL`, ratingCol, commentCol),
		stars, comment, id)
	if err != nil {
		return fmt.Errorf("save rating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRated
	}
	return nil
}

func (r *postgresRepo) Stats(ctx context.Context, actor Actor, monthStart time.Time) (*Stats, error) {
	partyCol, counterpartyCol, ratingCol, err := roleColumns(actor.Role)
	if err != nil {
		return nil, err
	}
	conn := database.Conn(ctx, r.db)
	st := &Stats{Role: actor.Role, ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		st.ByStatus[s] = 0
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM orders WHERE `+partyCol+` = $1 GROUP BY status`, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		st.ByStatus[s] = n
		st.TotalOrders += n
		if s.Active() {
			st.ActiveOrders += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// ratingCol holds stars received by the actor.
	err = conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(total) FILTER (WHERE status = 'completed'), 0),
		       COALESCE(SUM(total) FILTER (WHERE status = 'completed' AND completed_at >= $2), 0),
		       COUNT(DISTINCT %s),
		       COALESCE(ROUND(AVG(%s), 1), 0),
		       COUNT(%s)
		FROM orders WHERE %s = $1`, counterpartyCol, ratingCol, ratingCol, partyCol),
		actor.UserID, monthStart,
	).Scan(&st.CompletedRevenue, &st.MonthRevenue, &st.Counterparties, &st.RatingAverage, &st.RatingCount)
	if err != nil {
		return nil, fmt.Errorf("order revenue stats: %w", err)
	}
	return st, nil
}

// roleColumns maps a role to (own id column, counterparty id column,
// column holding ratings the role receives).
func roleColumns(role user.Role) (string, string, string, error) {
	switch role {
	case user.RoleFarmer:
		return "seller_id", "buyer_id", "seller_rating", nil
	case user.RoleBuyer:
		return "buyer_id", "seller_id", "buyer_rating", nil
	}
	return "", "", "", ErrUnauthorized
}

func (r *postgresRepo) attachLines(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID.String()
		o.Lines = []*OrderLine{}
	}

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l := &OrderLine{}
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Position, &l.ProductID,
			&l.Quantity, &l.UnitPrice, &l.Subtotal, &l.Notes); err != nil {
			return err
		}
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner, o *Order) error {
	var sellerRating, buyerRating sql.NullInt32
	var confirmed, preparing, ready, completed, cancelled sql.NullTime
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.BuyerID, &o.SellerID, &o.Total, &o.Status,
		&o.DeliveryAddress, &o.ContactPhone, &o.ScheduledDate, &o.ScheduledTime, &o.PaymentMethod,
		&o.BuyerNotes, &o.SellerNotes, &sellerRating, &buyerRating, &o.SellerRatingComment, &o.BuyerRatingComment,
		&o.CreatedAt, &confirmed, &preparing, &ready, &completed, &cancelled, &o.UpdatedAt)
	if err != nil {
		return err
	}
	o.SellerRating = nullInt(sellerRating)
	o.BuyerRating = nullInt(buyerRating)
	o.ConfirmedAt = nullTime(confirmed)
	o.PreparingAt = nullTime(preparing)
	o.ReadyAt = nullTime(ready)
	o.CompletedAt = nullTime(completed)
	o.CancelledAt = nullTime(cancelled)
	return nil
}

func nullInt(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
