package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/votekeeper/internal/dbx"
	"github.com/dmitrijs2005/votekeeper/internal/server/repositories/voters"
	"github.com/dmitrijs2005/votekeeper/internal/server/repositories/votes"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Voters(db dbx.DBTX) voters.Repository
	Votes(db dbx.DBTX) votes.Repository
}
