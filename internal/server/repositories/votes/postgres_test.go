package votes

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/votekeeper/internal/common"
	"github.com/dmitrijs2005/votekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func sampleVote() *models.Vote {
	return &models.Vote{
		IDHash:     "hash",
		Choice:     "Alice",
		SourceAddr: "192.0.2.10",
		CastAt:     time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		Token:      "AB12CD34",
	}
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("records a ballot", func(t *testing.T) {
		repo, mock := newMock(t)
		v := sampleVote()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO votes")).
			WithArgs(v.IDHash, v.Choice, v.SourceAddr, v.CastAt, v.Token).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Insert(ctx, v))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation yields ErrAlreadyVoted", func(t *testing.T) {
		repo, mock := newMock(t)
		v := sampleVote()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO votes")).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, repo.Insert(ctx, v), common.ErrAlreadyVoted)
	})

	t.Run("other db error passes through", func(t *testing.T) {
		repo, mock := newMock(t)
		v := sampleVote()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO votes")).
			WillReturnError(errors.New("connection lost"))

		err := repo.Insert(ctx, v)
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrAlreadyVoted)
	})
}

func TestSelectAll(t *testing.T) {
	repo, mock := newMock(t)
	v := sampleVote()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_hash, choice, source_addr, cast_at, token FROM votes")).
		WillReturnRows(sqlmock.NewRows([]string{"id_hash", "choice", "source_addr", "cast_at", "token"}).
			AddRow(v.IDHash, v.Choice, v.SourceAddr, v.CastAt, v.Token).
			AddRow("hash2", "Bob", "192.0.2.11", v.CastAt, "ZZ99YY88"))

	got, err := repo.SelectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Choice)
	assert.Equal(t, "Bob", got[1].Choice)
}

func TestCountByChoice(t *testing.T) {
	t.Run("groups by candidate", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT choice, COUNT(*) FROM votes GROUP BY choice")).
			WillReturnRows(sqlmock.NewRows([]string{"choice", "count"}).
				AddRow("Alice", 3).
				AddRow("Bob", 1))

		counts, err := repo.CountByChoice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Alice": 3, "Bob": 1}, counts)
	})

	t.Run("empty store", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT choice, COUNT(*) FROM votes GROUP BY choice")).
			WillReturnRows(sqlmock.NewRows([]string{"choice", "count"}))

		counts, err := repo.CountByChoice(context.Background())
		require.NoError(t, err)
		assert.Empty(t, counts)
	})
}
