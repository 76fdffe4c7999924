package activity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/georgemunganga/campo-directo-backend/internal/platform/database"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// Append joins the transaction on ctx when there is one.
func (r *postgresRepo) Append(ctx context.Context, rec *Record) error {
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO activities (id, user_id, kind, description, entity_type, entity_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		rec.ID, rec.UserID, rec.Kind, rec.Description, rec.EntityType, rec.EntityID,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Record, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, user_id, kind, description, entity_type, entity_id, created_at
		FROM activities WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Kind, &rec.Description,
			&rec.EntityType, &rec.EntityID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
