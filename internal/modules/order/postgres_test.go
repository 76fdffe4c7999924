package order

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

var orderCols = []string{
	"id", "order_number", "buyer_id", "seller_id", "total", "status",
	"delivery_address", "contact_phone", "scheduled_date", "scheduled_time", "payment_method",
	"buyer_notes", "seller_notes", "seller_rating", "buyer_rating", "seller_rating_comment", "buyer_rating_comment",
	"created_at", "confirmed_at", "preparing_at", "ready_at", "completed_at", "cancelled_at", "updated_at",
}

var lineCols = []string{"id", "order_id", "position", "product_id", "quantity", "unit_price", "subtotal", "notes"}

func orderRow(id uuid.UUID, status Status, sellerRating driver.Value) []driver.Value {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		id.String(), "ORD-20260301-AB12", uuid.NewString(), uuid.NewString(), "31000.00", string(status),
		"Calle 10", "+57 300", ts, "08:30", "cash",
		"", "", sellerRating, nil, "", "",
		ts, ts, nil, nil, nil, nil, ts,
	}
}

func newMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresCreateOrder(t *testing.T) {
	repo, mock := newMock(t)
	o := &Order{
		ID: uuid.New(), OrderNumber: "ORD-20260301-AB12", BuyerID: uuid.New(), SellerID: uuid.New(),
		Total: d("31000"), Status: StatusPending, PaymentMethod: PaymentCash, CreatedAt: time.Now(),
		Lines: []*OrderLine{
			{ID: uuid.New(), Position: 1, ProductID: uuid.New(), Quantity: d("3"), UnitPrice: d("5000"), Subtotal: d("15000")},
			{ID: uuid.New(), Position: 2, ProductID: uuid.New(), Quantity: d("2"), UnitPrice: d("8000"), Subtotal: d("16000")},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_lines").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_lines").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateOrder(context.Background(), o))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateOrder_LineFailureRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	o := &Order{ID: uuid.New(), Lines: []*OrderLine{{ID: uuid.New(), Position: 1}}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_lines").WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	err := repo.CreateOrder(context.Background(), o)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateOrder_DuplicateNumber(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateOrder(context.Background(), &Order{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestPostgresGetOrderByID(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id=\\$1$").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(orderRow(id, StatusCompleted, int64(4))...))
	mock.ExpectQuery("FROM order_lines WHERE order_id = ANY").
		WillReturnRows(sqlmock.NewRows(lineCols).
			AddRow(uuid.NewString(), id.String(), 1, uuid.NewString(), "3", "5000", "15000", "").
			AddRow(uuid.NewString(), id.String(), 2, uuid.NewString(), "2", "8000", "16000", "extra ripe"))

	o, err := repo.GetOrderByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	require.NotNil(t, o.SellerRating)
	assert.Equal(t, 4, *o.SellerRating)
	assert.Nil(t, o.BuyerRating)
	assert.NotNil(t, o.ConfirmedAt)
	assert.Nil(t, o.CompletedAt)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "extra ripe", o.Lines[1].Notes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetOrderForUpdate_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := repo.GetOrderForUpdate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgresUpdateStatus_Conditional(t *testing.T) {
	repo, mock := newMock(t)
	o := &Order{ID: uuid.New(), Status: StatusCompleted, UpdatedAt: time.Now()}

	mock.ExpectExec("UPDATE orders\\s+SET status=\\$1").
		WithArgs(StatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"", "", sqlmock.AnyArg(), o.ID, StatusReady).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), o, StatusReady))

	mock.ExpectExec("UPDATE orders").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), o, StatusReady), ErrStatusConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRating(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE orders SET seller_rating=\\$1, seller_rating_comment=\\$2").
		WithArgs(5, "great", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveRating(context.Background(), id, PartyBuyer, 5, "great"))

	mock.ExpectExec("UPDATE orders SET buyer_rating=\\$1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SaveRating(context.Background(), id, PartySeller, 2, ""), ErrAlreadyRated)

	assert.ErrorIs(t, repo.SaveRating(context.Background(), id, PartyNone, 2, ""), ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListOrders(t *testing.T) {
	repo, mock := newMock(t)
	actor := Actor{UserID: uuid.New(), Role: user.RoleFarmer}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM orders WHERE seller_id = \\$1 AND status = ANY\\(\\$2\\) AND created_at >= \\$3").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT \\$4 OFFSET \\$5").
		WithArgs(actor.UserID, sqlmock.AnyArg(), from, 5, 5).
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(orderRow(id, StatusPending, nil)...))
	mock.ExpectQuery("FROM order_lines").WillReturnRows(sqlmock.NewRows(lineCols))

	f := ListFilter{Statuses: []Status{StatusPending, StatusConfirmed}, From: &from, Page: 2, Limit: 5}
	orders, total, err := repo.ListOrders(context.Background(), actor, f)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, orders, 1)
	assert.Empty(t, orders[0].Lines)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats_Buyer(t *testing.T) {
	repo, mock := newMock(t)
	actor := Actor{UserID: uuid.New(), Role: user.RoleBuyer}

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM orders WHERE buyer_id = \\$1 GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).AddRow("completed", 3).AddRow("cancelled", 1))
	mock.ExpectQuery("COUNT\\(DISTINCT seller_id\\)").
		WillReturnRows(sqlmock.NewRows([]string{"revenue", "month", "counterparties", "avg", "count"}).
			AddRow("93000", "31000", 2, "4.5", 2))

	st, err := repo.Stats(context.Background(), actor, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 6, st.TotalOrders)
	assert.Equal(t, 2, st.ActiveOrders)
	assert.Equal(t, 0, st.ByStatus[StatusReady])
	assert.True(t, d("93000").Equal(st.CompletedRevenue))
	assert.True(t, d("4.5").Equal(st.RatingAverage))
	assert.Equal(t, 2, st.Counterparties)
	require.NoError(t, mock.ExpectationsWereMet())
}
