// Package server initializes and runs the voting server: it opens the
// database, runs migrations, generates the process-lifetime ballot key
// pair, publishes the public key and starts the TCP endpoint. It also
// handles graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/votekeeper/internal/credential"
	"github.com/dmitrijs2005/votekeeper/internal/cryptox"
	"github.com/dmitrijs2005/votekeeper/internal/logging"
	"github.com/dmitrijs2005/votekeeper/internal/server/config"
	"github.com/dmitrijs2005/votekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/votekeeper/internal/server/services"
	"github.com/dmitrijs2005/votekeeper/internal/server/tcp"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	keys     *cryptox.KeyPair
	election *services.ElectionService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	keys, err := cryptox.Generate(c.RSAKeySize)
	if err != nil {
		return nil, fmt.Errorf("key pair error: %w", err)
	}

	issuer := credential.NewIssuer(c.TokenValidityDuration)
	election := services.NewElectionService(db, rm, issuer)

	return &App{config: c, logger: logger, db: db, keys: keys, election: election}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// publishPublicKey makes the ballot public key available out-of-band: it is
// logged and, if configured, written to a PEM file that operators hand to
// voting clients. Peers must hold it before they can submit a ballot.
func (app *App) publishPublicKey(ctx context.Context) error {
	pemBytes, err := app.keys.PublicKeyPEM()
	if err != nil {
		return err
	}

	app.logger.Info(ctx, "ballot public key", "pem", string(pemBytes))

	if app.config.PublicKeyFile != "" {
		if err := os.WriteFile(app.config.PublicKeyFile, pemBytes, 0o644); err != nil {
			return err
		}
		app.logger.Info(ctx, "public key written", "path", app.config.PublicKeyFile)
	}

	return nil
}

func (app *App) startTCPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := tcp.NewServer(app.config.EndpointAddr, app.logger, app.election, app.keys, app.config.SessionReadTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.publishPublicKey(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startTCPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
