package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/georgemunganga/campo-directo-backend/internal/platform/database"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, role,
	rating_average, rating_count, created_at, updated_at`

func (r *postgresRepository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *postgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *postgresRepository) UpdateRating(ctx context.Context, id uuid.UUID, stars int) (RatingSummary, error) {
	var next RatingSummary
	err := database.WithinTx(ctx, r.db, func(ctx context.Context) error {
		conn := database.Conn(ctx, r.db)

		var current RatingSummary
		err := conn.QueryRowContext(ctx,
			`SELECT rating_average, rating_count FROM users WHERE id = $1 FOR UPDATE`, id,
		).Scan(&current.Average, &current.Count)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user rating: %w", err)
		}

		next = current.Add(stars)
		_, err = conn.ExecContext(ctx,
			`UPDATE users SET rating_average = $1, rating_count = $2, updated_at = NOW() WHERE id = $3`,
			next.Average, next.Count, id)
		if err != nil {
			return fmt.Errorf("update user rating: %w", err)
		}
		return nil
	})
	return next, err
}

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.Role,
		&user.RatingAverage,
		&user.RatingCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
