package activity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRepo struct {
	appended  []*Record
	lastLimit int
}

func (r *recordingRepo) Append(_ context.Context, rec *Record) error {
	r.appended = append(r.appended, rec)
	return nil
}

func (r *recordingRepo) ListByUser(_ context.Context, _ uuid.UUID, limit int) ([]*Record, error) {
	r.lastLimit = limit
	return r.appended, nil
}

func TestLog(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewService(repo)

	rec := &Record{UserID: uuid.New(), Kind: KindOrder, Description: "New order ORD-20260301-AB12", EntityType: EntityOrder}
	require.NoError(t, svc.Log(context.Background(), rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Len(t, repo.appended, 1)

	assert.ErrorIs(t, svc.Log(context.Background(), &Record{Kind: KindInfo, Description: "x"}), ErrInvalidRecord)
	assert.ErrorIs(t, svc.Log(context.Background(), &Record{UserID: uuid.New(), Kind: KindInfo}), ErrInvalidRecord)
}

func TestListClampsLimit(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewService(repo)

	for in, want := range map[int]int{0: defaultLimit, -3: defaultLimit, 7: 7, 500: maxLimit} {
		_, err := svc.List(context.Background(), uuid.New(), in)
		require.NoError(t, err)
		assert.Equal(t, want, repo.lastLimit, "limit %d", in)
	}
}

func TestPostgresAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := &Record{ID: uuid.New(), UserID: uuid.New(), Kind: KindSuccess, Description: "done", EntityType: EntityOrder, EntityID: "1"}
	mock.ExpectQuery("INSERT INTO activities").
		WithArgs(rec.ID, rec.UserID, rec.Kind, rec.Description, rec.EntityType, rec.EntityID).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(mustTime()))

	require.NoError(t, NewPostgresRepository(db).Append(context.Background(), rec))
	assert.False(t, rec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func mustTime() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
