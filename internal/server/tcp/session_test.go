package tcp

import (
	"bufio"
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/votekeeper/internal/common"
	"github.com/dmitrijs2005/votekeeper/internal/cryptox"
	"github.com/dmitrijs2005/votekeeper/internal/logging"
	"github.com/dmitrijs2005/votekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One key pair for the whole package; 2048-bit generation is not free.
var testKeys = mustKeys()

func mustKeys() *cryptox.KeyPair {
	k, err := cryptox.Generate(2048)
	if err != nil {
		panic(err)
	}
	return k
}

func nopLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

// --- fake election ---

type fakeElection struct {
	mu sync.Mutex

	registerOut *models.Voter
	registerErr error

	authorizeOut *models.Voter
	authorizeErr error

	castErr   error
	castCalls int

	tallyOut map[string]int
	tallyErr error

	gotRawID  string
	gotToken  string
	gotChoice string
	gotSource string
}

func (f *fakeElection) Register(ctx context.Context, rawID string) (*models.Voter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotRawID = rawID
	return f.registerOut, f.registerErr
}

func (f *fakeElection) Authorize(ctx context.Context, rawID string) (*models.Voter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotRawID = rawID
	return f.authorizeOut, f.authorizeErr
}

func (f *fakeElection) CastVote(ctx context.Context, rawID, token, choice, sourceAddr string) (*models.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.castCalls++
	if f.castErr != nil {
		return nil, f.castErr
	}
	f.gotRawID, f.gotToken, f.gotChoice, f.gotSource = rawID, token, choice, sourceAddr
	return &models.Vote{IDHash: "hash", Choice: choice, SourceAddr: sourceAddr, CastAt: time.Now(), Token: token}, nil
}

func (f *fakeElection) Tally(ctx context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tallyOut, f.tallyErr
}

func (f *fakeElection) casts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.castCalls
}

// --- harness ---

// startSession runs a session over a pipe and hands the peer end to the
// test. done closes when the session terminates.
func startSession(t *testing.T, election Election, timeout time.Duration) (net.Conn, *bufio.Reader, <-chan struct{}) {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewSession(server, nopLogger(), election, testKeys, timeout).Run(context.Background())
	}()

	return client, bufio.NewReader(client), done
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func skipGreeting(t *testing.T, r *bufio.Reader) {
	t.Helper()
	assert.Equal(t, "Welcome to the voting server.", readLine(t, r))
	assert.Equal(t, "Available commands: register, vote, tally.", readLine(t, r))
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
	}
}

const testToken = "AB12CD34"

func eligibleVoter() *models.Voter {
	return &models.Voter{
		IDHash:      "hash",
		Last4:       "7890",
		Token:       testToken,
		TokenExpiry: time.Now().Add(24 * time.Hour),
	}
}

// --- register path ---

func TestSessionRegister(t *testing.T) {
	t.Run("successful registration returns the token", func(t *testing.T) {
		election := &fakeElection{registerOut: eligibleVoter()}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "register")
		assert.Equal(t, "Enter your 10-digit ID:", readLine(t, r))
		sendLine(t, conn, "1234567890")
		assert.Equal(t, "Registration successful. Your token is: "+testToken, readLine(t, r))

		waitDone(t, done)
		assert.Equal(t, "1234567890", election.gotRawID)
	})

	t.Run("malformed identifier", func(t *testing.T) {
		election := &fakeElection{registerErr: common.ErrInvalidID}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "register")
		readLine(t, r)
		sendLine(t, conn, "12345")
		assert.Equal(t, "Invalid ID. Must be exactly 10 digits.", readLine(t, r))

		waitDone(t, done)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		election := &fakeElection{registerErr: common.ErrAlreadyRegistered}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "register")
		readLine(t, r)
		sendLine(t, conn, "1234567890")
		assert.Equal(t, "ID already registered.", readLine(t, r))

		waitDone(t, done)
	})

	t.Run("storage failure is reported generically", func(t *testing.T) {
		election := &fakeElection{registerErr: common.ErrInternal}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "register")
		readLine(t, r)
		sendLine(t, conn, "1234567890")
		assert.Equal(t, "Registration failed, please try again later.", readLine(t, r))

		waitDone(t, done)
	})
}

// --- vote path ---

func voteUpTo(t *testing.T, conn net.Conn, r *bufio.Reader, token string) {
	t.Helper()
	skipGreeting(t, r)
	sendLine(t, conn, "vote")
	assert.Equal(t, "Enter your 10-digit ID:", readLine(t, r))
	sendLine(t, conn, "1234567890")
	assert.Equal(t, "Enter your assigned token:", readLine(t, r))
	sendLine(t, conn, token)
}

func TestSessionVote(t *testing.T) {
	t.Run("valid vote is recorded", func(t *testing.T) {
		election := &fakeElection{authorizeOut: eligibleVoter()}
		conn, r, done := startSession(t, election, 0)

		voteUpTo(t, conn, r, testToken)
		assert.Equal(t, "Send your encrypted ballot (max 256 bytes):", readLine(t, r))

		ciphertext, err := cryptox.Encrypt("Alice", testKeys.Public())
		require.NoError(t, err)
		_, err = conn.Write(ciphertext)
		require.NoError(t, err)

		assert.Equal(t, "Vote for 'Alice' recorded successfully!", readLine(t, r))

		waitDone(t, done)
		assert.Equal(t, 1, election.casts())
		assert.Equal(t, "Alice", election.gotChoice)
		assert.Equal(t, testToken, election.gotToken)
	})

	t.Run("unregistered identity", func(t *testing.T) {
		election := &fakeElection{authorizeErr: common.ErrNotRegistered}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "vote")
		readLine(t, r)
		sendLine(t, conn, "1234567890")
		assert.Equal(t, "You are not registered.", readLine(t, r))

		waitDone(t, done)
		assert.Zero(t, election.casts())
	})

	t.Run("expired token", func(t *testing.T) {
		election := &fakeElection{authorizeErr: common.ErrTokenExpired}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "vote")
		readLine(t, r)
		sendLine(t, conn, "1234567890")
		assert.Equal(t, "Token expired.", readLine(t, r))

		waitDone(t, done)
		assert.Zero(t, election.casts())
	})

	t.Run("already voted", func(t *testing.T) {
		election := &fakeElection{authorizeErr: common.ErrAlreadyVoted}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "vote")
		readLine(t, r)
		sendLine(t, conn, "1234567890")
		assert.Equal(t, "You have already voted!", readLine(t, r))

		waitDone(t, done)
		assert.Zero(t, election.casts())
	})

	t.Run("wrong token stops before the ballot", func(t *testing.T) {
		election := &fakeElection{authorizeOut: eligibleVoter()}
		conn, r, done := startSession(t, election, 0)

		voteUpTo(t, conn, r, "WRONGTOK")
		assert.Equal(t, "Invalid token!", readLine(t, r))

		waitDone(t, done)
		assert.Zero(t, election.casts())
	})

	t.Run("garbage ciphertext leaves the vote uncast", func(t *testing.T) {
		election := &fakeElection{authorizeOut: eligibleVoter()}
		conn, r, done := startSession(t, election, 0)

		voteUpTo(t, conn, r, testToken)
		readLine(t, r)

		garbage := make([]byte, testKeys.CiphertextSize())
		_, err := rand.Read(garbage)
		require.NoError(t, err)
		_, err = conn.Write(garbage)
		require.NoError(t, err)

		assert.Equal(t, "Could not decrypt your ballot. Your vote was not recorded.", readLine(t, r))

		waitDone(t, done)
		assert.Zero(t, election.casts())
	})

	t.Run("truncated ciphertext and disconnect leaves the vote uncast", func(t *testing.T) {
		election := &fakeElection{authorizeOut: eligibleVoter()}
		conn, r, done := startSession(t, election, 0)

		voteUpTo(t, conn, r, testToken)
		readLine(t, r)

		_, err := conn.Write([]byte("short"))
		require.NoError(t, err)
		conn.Close()

		waitDone(t, done)
		assert.Zero(t, election.casts())
	})

	t.Run("losing a concurrent race reports already voted", func(t *testing.T) {
		election := &fakeElection{authorizeOut: eligibleVoter(), castErr: common.ErrAlreadyVoted}
		conn, r, done := startSession(t, election, 0)

		voteUpTo(t, conn, r, testToken)
		readLine(t, r)

		ciphertext, err := cryptox.Encrypt("Alice", testKeys.Public())
		require.NoError(t, err)
		_, err = conn.Write(ciphertext)
		require.NoError(t, err)

		assert.Equal(t, "You have already voted!", readLine(t, r))

		waitDone(t, done)
	})
}

// --- tally path ---

func TestSessionTally(t *testing.T) {
	t.Run("counts per candidate, sorted", func(t *testing.T) {
		election := &fakeElection{tallyOut: map[string]int{"Bob": 1, "Alice": 3}}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "tally")
		assert.Equal(t, "Current tally:", readLine(t, r))
		assert.Equal(t, "Alice: 3", readLine(t, r))
		assert.Equal(t, "Bob: 1", readLine(t, r))

		waitDone(t, done)
	})

	t.Run("empty store", func(t *testing.T) {
		election := &fakeElection{tallyOut: map[string]int{}}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "tally")
		assert.Equal(t, "Current tally:", readLine(t, r))
		assert.Equal(t, "No votes recorded yet.", readLine(t, r))

		waitDone(t, done)
	})

	t.Run("storage failure", func(t *testing.T) {
		election := &fakeElection{tallyErr: common.ErrInternal}
		conn, r, done := startSession(t, election, 0)

		skipGreeting(t, r)
		sendLine(t, conn, "tally")
		assert.Equal(t, "Tally failed, please try again later.", readLine(t, r))

		waitDone(t, done)
	})
}

// --- protocol-level behavior ---

func TestSessionUnknownCommand(t *testing.T) {
	election := &fakeElection{}
	conn, r, done := startSession(t, election, 0)

	skipGreeting(t, r)
	sendLine(t, conn, "help")
	assert.Equal(t, "Unknown command 'help'. Valid commands: register, vote, tally.", readLine(t, r))

	waitDone(t, done)
}

func TestSessionCommandCaseInsensitive(t *testing.T) {
	election := &fakeElection{tallyOut: map[string]int{}}
	conn, r, done := startSession(t, election, 0)

	skipGreeting(t, r)
	sendLine(t, conn, "TALLY")
	assert.Equal(t, "Current tally:", readLine(t, r))
	readLine(t, r)

	waitDone(t, done)
}

func TestSessionPeerDisconnect(t *testing.T) {
	election := &fakeElection{authorizeOut: eligibleVoter()}
	conn, r, done := startSession(t, election, 0)

	skipGreeting(t, r)
	sendLine(t, conn, "vote")
	readLine(t, r)
	conn.Close()

	waitDone(t, done)
	assert.Zero(t, election.casts())
}

func TestSessionReadTimeout(t *testing.T) {
	election := &fakeElection{}
	_, r, done := startSession(t, election, 50*time.Millisecond)

	// Read the greeting but never send a command; the deadline must end
	// the session instead of letting it hold resources forever.
	skipGreeting(t, r)

	waitDone(t, done)
}
