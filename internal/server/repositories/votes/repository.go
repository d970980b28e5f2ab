package votes

import (
	"context"

	"github.com/dmitrijs2005/votekeeper/internal/server/models"
)

// Repository is the store surface for recorded ballots.
type Repository interface {
	// Insert writes one vote record. The unique index on id_hash makes a
	// second insert for the same identity fail, returning
	// common.ErrAlreadyVoted.
	Insert(ctx context.Context, vote *models.Vote) error

	// SelectAll returns every recorded vote.
	SelectAll(ctx context.Context) ([]*models.Vote, error)

	// CountByChoice returns per-candidate vote counts.
	CountByChoice(ctx context.Context) (map[string]int, error)
}
