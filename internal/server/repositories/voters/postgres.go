// Package voters provides the PostgreSQL-backed repository for voter
// identity records.
package voters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/votekeeper/internal/common"
	"github.com/dmitrijs2005/votekeeper/internal/dbx"
	"github.com/dmitrijs2005/votekeeper/internal/server/models"
)

// PostgresRepository implements voter storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the voter record. ON CONFLICT DO NOTHING plus the
// rows-affected check turns a duplicate (including a concurrent one) into
// common.ErrAlreadyRegistered without aborting the surrounding statement.
func (r *PostgresRepository) Create(ctx context.Context, voter *models.Voter) error {
	query := `
		INSERT INTO voters (id_hash, last4, token, token_expiry, voted)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (id_hash) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query,
		voter.IDHash, voter.Last4, voter.Token, voter.TokenExpiry)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrAlreadyRegistered
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) GetByIDHash(ctx context.Context, idHash string) (*models.Voter, error) {
	return r.get(ctx, idHash, false)
}

func (r *PostgresRepository) GetByIDHashForUpdate(ctx context.Context, idHash string) (*models.Voter, error) {
	return r.get(ctx, idHash, true)
}

func (r *PostgresRepository) get(ctx context.Context, idHash string, forUpdate bool) (*models.Voter, error) {
	query := `
		SELECT id_hash, last4, token, token_expiry, voted FROM voters
		WHERE id_hash = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	voter := &models.Voter{}
	err := r.db.QueryRowContext(ctx, query, idHash).Scan(
		&voter.IDHash, &voter.Last4, &voter.Token, &voter.TokenExpiry, &voter.Voted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotRegistered
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return voter, nil
}

// MarkVoted performs the guarded false→true transition. The AND voted =
// FALSE predicate makes the update a no-op for a second writer, which the
// rows-affected check reports as common.ErrAlreadyVoted.
func (r *PostgresRepository) MarkVoted(ctx context.Context, idHash string) error {
	query := `
		UPDATE voters SET voted = TRUE
		WHERE id_hash = $1 AND voted = FALSE;
	`
	res, err := r.db.ExecContext(ctx, query, idHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrAlreadyVoted
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
