// Package services implements the election orchestration on top of the
// repositories: registration, vote authorization, the atomic cast-vote
// transaction, and tallying.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/votekeeper/internal/common"
	"github.com/dmitrijs2005/votekeeper/internal/credential"
	"github.com/dmitrijs2005/votekeeper/internal/dbx"
	"github.com/dmitrijs2005/votekeeper/internal/identity"
	"github.com/dmitrijs2005/votekeeper/internal/server/models"
	"github.com/dmitrijs2005/votekeeper/internal/server/repositories/repomanager"
)

// Identifiers are exactly ten ASCII digits.
var validID = regexp.MustCompile(`^[0-9]{10}$`)

type ElectionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *credential.Issuer

	// now is a seam for tests.
	now func() time.Time
}

func NewElectionService(db *sql.DB, m repomanager.RepositoryManager, issuer *credential.Issuer) *ElectionService {
	return &ElectionService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		now:         time.Now,
	}
}

// Register validates the raw identifier, derives its pseudonym and creates
// the voter record with a freshly issued token. The primary key on id_hash
// makes concurrent registrations for one identifier yield exactly one row;
// the loser gets common.ErrAlreadyRegistered.
func (s *ElectionService) Register(ctx context.Context, rawID string) (*models.Voter, error) {

	if !validID.MatchString(rawID) {
		return nil, common.ErrInvalidID
	}

	token, expiry, err := s.issuer.Issue()
	if err != nil {
		return nil, fmt.Errorf("error issuing credential: %w", err)
	}

	voter := &models.Voter{
		IDHash:      identity.Hash(rawID),
		Last4:       identity.Last4(rawID),
		Token:       token,
		TokenExpiry: expiry,
	}

	if err := s.repomanager.Voters(s.db).Create(ctx, voter); err != nil {
		return nil, err
	}

	return voter, nil
}

// Authorize checks whether the identity behind rawID may proceed to vote:
// it must be registered, unexpired and not voted yet. The returned record
// is advisory; CastVote re-checks everything inside its transaction.
func (s *ElectionService) Authorize(ctx context.Context, rawID string) (*models.Voter, error) {

	voter, err := s.repomanager.Voters(s.db).GetByIDHash(ctx, identity.Hash(rawID))
	if err != nil {
		return nil, err
	}

	if err := s.checkEligibility(voter); err != nil {
		return nil, err
	}

	return voter, nil
}

func (s *ElectionService) checkEligibility(voter *models.Voter) error {
	if s.now().After(voter.TokenExpiry) {
		return common.ErrTokenExpired
	}
	if voter.Voted {
		return common.ErrAlreadyVoted
	}
	return nil
}

func (s *ElectionService) checkToken(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// CastVote records one ballot for rawID. The whole check-then-write runs
// in a single transaction: the voter row is locked, eligibility and the
// token are re-checked against the locked row, voted flips true and the
// vote row is inserted. Two concurrent attempts for one identity therefore
// end with exactly one recorded vote; the second sees
// common.ErrAlreadyVoted. The row lock is held only for these in-memory
// checks and writes, never across network reads.
func (s *ElectionService) CastVote(ctx context.Context, rawID, token, choice, sourceAddr string) (*models.Vote, error) {

	idHash := identity.Hash(rawID)

	var vote *models.Vote

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		voterRepo := s.repomanager.Voters(tx)

		voter, err := voterRepo.GetByIDHashForUpdate(ctx, idHash)
		if err != nil {
			return err
		}

		if err := s.checkEligibility(voter); err != nil {
			return err
		}

		if !s.checkToken(voter.Token, token) {
			return common.ErrInvalidToken
		}

		if err := voterRepo.MarkVoted(ctx, idHash); err != nil {
			return err
		}

		vote = &models.Vote{
			IDHash:     idHash,
			Choice:     choice,
			SourceAddr: sourceAddr,
			CastAt:     s.now(),
			Token:      token,
		}

		return s.repomanager.Votes(tx).Insert(ctx, vote)
	})

	if err != nil {
		return nil, err
	}

	return vote, nil
}

// Tally returns per-candidate counts. The aggregation is a single
// statement on the live connection: statement-level read consistency means
// no half-committed vote is ever counted, though a vote committing
// mid-scan may or may not be included.
func (s *ElectionService) Tally(ctx context.Context) (map[string]int, error) {

	counts, err := s.repomanager.Votes(s.db).CountByChoice(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("error counting votes: %w", err)
	}

	return counts, nil
}
