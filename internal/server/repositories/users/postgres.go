package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/dbx"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, tier, created_at`

	var tier string
	err := r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &tier, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Tier = models.Tier(tier)

	return user, nil
}

const selectUser = `SELECT id, username, email, password_hash, tier, tier_event_at, created_at FROM users`

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	query := selectUser + `
		 WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		 LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, identifier))
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := selectUser + `
		 WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		u           models.User
		tier        string
		tierEventAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &tier, &tierEventAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.Tier = models.Tier(tier)
	if tierEventAt.Valid {
		at := tierEventAt.Time
		u.TierEventAt = &at
	}

	return &u, nil
}

func (r *PostgresRepository) SetTier(ctx context.Context, id int64, tier models.Tier, eventAt time.Time) (bool, error) {
	query :=
		`UPDATE users SET tier = $2, tier_event_at = $3
		 WHERE id = $1 AND (tier_event_at IS NULL OR tier_event_at <= $3)`

	res, err := r.db.ExecContext(ctx, query, id, string(tier), eventAt.UTC())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}
