package voters

import (
	"context"

	"github.com/dmitrijs2005/votekeeper/internal/server/models"
)

// Repository is the store surface for voter identity records.
type Repository interface {
	// Create inserts a new voter. Returns common.ErrAlreadyRegistered if a
	// record with the same IDHash already exists; concurrent creates for
	// one identity yield exactly one row.
	Create(ctx context.Context, voter *models.Voter) error

	// GetByIDHash returns the voter or common.ErrNotRegistered.
	GetByIDHash(ctx context.Context, idHash string) (*models.Voter, error)

	// GetByIDHashForUpdate is GetByIDHash with a row lock; call it inside a
	// transaction to serialize check-then-write sequences on one identity.
	GetByIDHashForUpdate(ctx context.Context, idHash string) (*models.Voter, error)

	// MarkVoted flips voted to true. Returns common.ErrAlreadyVoted if the
	// flag was already set, so the transition happens at most once.
	MarkVoted(ctx context.Context, idHash string) error
}
