// Package votes provides the PostgreSQL-backed repository for recorded
// ballots and tally queries.
package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/votekeeper/internal/common"
	"github.com/dmitrijs2005/votekeeper/internal/dbx"
	"github.com/dmitrijs2005/votekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL unique_violation.
const pgUniqueViolation = "23505"

// PostgresRepository implements vote storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert records one ballot. A unique-index violation on id_hash means a
// concurrent transaction already recorded a vote for this identity.
func (r *PostgresRepository) Insert(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO votes (id_hash, choice, source_addr, cast_at, token)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := r.db.ExecContext(ctx, query,
		vote.IDHash, vote.Choice, vote.SourceAddr, vote.CastAt, vote.Token)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrAlreadyVoted
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SelectAll returns every recorded vote.
func (r *PostgresRepository) SelectAll(ctx context.Context) ([]*models.Vote, error) {
	query := `
		SELECT id_hash, choice, source_addr, cast_at, token FROM votes
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select votes: %w", err)
	}
	defer rows.Close()

	var result []*models.Vote
	for rows.Next() {
		var item models.Vote
		if err := rows.Scan(
			&item.IDHash, &item.Choice, &item.SourceAddr, &item.CastAt, &item.Token,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CountByChoice aggregates votes per candidate in a single statement, so
// the counts reflect one consistent snapshot even while writers commit.
func (r *PostgresRepository) CountByChoice(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT choice, COUNT(*) FROM votes GROUP BY choice
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var choice string
		var n int
		if err := rows.Scan(&choice, &n); err != nil {
			return nil, err
		}
		counts[choice] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
