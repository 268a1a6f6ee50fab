package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Link(ctx context.Context, customerID string, userID int64) error {
	query :=
		`INSERT INTO billing_customers (customer_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (customer_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, customerID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindUserID(ctx context.Context, customerID string) (int64, error) {
	query :=
		`SELECT user_id FROM billing_customers
		 WHERE customer_id = $1`

	var userID int64
	if err := r.db.QueryRowContext(ctx, query, customerID).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}
