package tcp

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/votekeeper/internal/common"
	"github.com/dmitrijs2005/votekeeper/internal/logging"
	"github.com/dmitrijs2005/votekeeper/internal/server/models"
	"github.com/google/uuid"
)

// Election is the service surface a session needs. The concrete type is
// services.ElectionService; tests provide fakes.
type Election interface {
	Register(ctx context.Context, rawID string) (*models.Voter, error)
	Authorize(ctx context.Context, rawID string) (*models.Voter, error)
	CastVote(ctx context.Context, rawID, token, choice, sourceAddr string) (*models.Vote, error)
	Tally(ctx context.Context) (map[string]int, error)
}

// Decrypter is the slice of the encryption capability the session uses:
// the ciphertext bound for the transport read and the decrypt operation.
type Decrypter interface {
	CiphertextSize() int
	Decrypt(ciphertext []byte) (string, error)
}

// Session serves exactly one top-level command on one connection, then
// terminates. All state here is connection-scoped; everything persistent
// goes through the Election service.
type Session struct {
	conn        net.Conn
	reader      *bufio.Reader
	logger      logging.Logger
	election    Election
	decrypter   Decrypter
	readTimeout time.Duration
}

func NewSession(conn net.Conn, l logging.Logger, election Election, decrypter Decrypter, readTimeout time.Duration) *Session {
	return &Session{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		logger:      l.With("session_id", uuid.NewString(), "remote", conn.RemoteAddr().String()),
		election:    election,
		decrypter:   decrypter,
		readTimeout: readTimeout,
	}
}

// Run drives the session state machine: greeting, one command, the
// command's prompt/response sequence, then close. Errors are session-local
// and reported to the peer as text; they never propagate to the dispatcher.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()

	s.logger.Info(ctx, "session started")

	if err := s.send("Welcome to the voting server.", "Available commands: register, vote, tally."); err != nil {
		s.logger.Warn(ctx, "peer gone before greeting", "error", err)
		return
	}

	command, err := s.readLine()
	if err != nil {
		s.logger.Warn(ctx, "peer disconnected before command", "error", err)
		return
	}
	command = strings.ToLower(command)

	switch command {
	case "register":
		err = s.handleRegister(ctx)
	case "vote":
		err = s.handleVote(ctx)
	case "tally":
		err = s.handleTally(ctx)
	default:
		err = s.send(fmt.Sprintf("Unknown command '%s'. Valid commands: register, vote, tally.", command))
		if err == nil {
			err = common.ErrUnknownCommand
		}
	}

	if err != nil {
		s.logger.Info(ctx, "session ended", "command", command, "error", err.Error())
		return
	}
	s.logger.Info(ctx, "session ended", "command", command)
}

func (s *Session) handleRegister(ctx context.Context) error {
	if err := s.send("Enter your 10-digit ID:"); err != nil {
		return err
	}
	rawID, err := s.readLine()
	if err != nil {
		return err
	}

	voter, err := s.election.Register(ctx, rawID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidID):
			return s.sendAfter(err, "Invalid ID. Must be exactly 10 digits.")
		case errors.Is(err, common.ErrAlreadyRegistered):
			return s.sendAfter(err, "ID already registered.")
		default:
			s.logger.Error(ctx, "registration failed", "error", err.Error())
			return s.sendAfter(err, "Registration failed, please try again later.")
		}
	}

	s.logger.Info(ctx, "voter registered", "id_last4", voter.Last4)
	return s.send("Registration successful. Your token is: " + voter.Token)
}

func (s *Session) handleVote(ctx context.Context) error {
	if err := s.send("Enter your 10-digit ID:"); err != nil {
		return err
	}
	rawID, err := s.readLine()
	if err != nil {
		return err
	}

	// Early rejection before the peer types anything else. CastVote
	// re-checks all of this atomically.
	voter, err := s.election.Authorize(ctx, rawID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotRegistered):
			return s.sendAfter(err, "You are not registered.")
		case errors.Is(err, common.ErrTokenExpired):
			return s.sendAfter(err, "Token expired.")
		case errors.Is(err, common.ErrAlreadyVoted):
			return s.sendAfter(err, "You have already voted!")
		default:
			s.logger.Error(ctx, "authorization failed", "error", err.Error())
			return s.sendAfter(err, "Vote failed, please try again later.")
		}
	}

	if err := s.send("Enter your assigned token:"); err != nil {
		return err
	}
	token, err := s.readLine()
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(voter.Token)) != 1 {
		return s.sendAfter(common.ErrInvalidToken, "Invalid token!")
	}

	bound := s.decrypter.CiphertextSize()
	if err := s.send(fmt.Sprintf("Send your encrypted ballot (max %d bytes):", bound)); err != nil {
		return err
	}
	ciphertext, err := s.readBallot(bound)
	if err != nil {
		return err
	}

	// Decryption failure does not consume the vote attempt: nothing was
	// written, so the voter may retry in a later session.
	choice, err := s.decrypter.Decrypt(ciphertext)
	if err != nil {
		return s.sendAfter(err, "Could not decrypt your ballot. Your vote was not recorded.")
	}

	sourceAddr := remoteHost(s.conn)
	vote, err := s.election.CastVote(ctx, rawID, token, choice, sourceAddr)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyVoted):
			// Lost a race with a concurrent session for the same identity.
			return s.sendAfter(err, "You have already voted!")
		case errors.Is(err, common.ErrInvalidToken):
			return s.sendAfter(err, "Invalid token!")
		case errors.Is(err, common.ErrTokenExpired):
			return s.sendAfter(err, "Token expired.")
		default:
			s.logger.Error(ctx, "vote not recorded", "error", err.Error())
			return s.sendAfter(err, "Vote failed, please try again later.")
		}
	}

	s.logger.Info(ctx, "vote recorded", "source", sourceAddr)
	return s.send(fmt.Sprintf("Vote for '%s' recorded successfully!", vote.Choice))
}

func (s *Session) handleTally(ctx context.Context) error {
	counts, err := s.election.Tally(ctx)
	if err != nil {
		s.logger.Error(ctx, "tally failed", "error", err.Error())
		return s.sendAfter(err, "Tally failed, please try again later.")
	}

	lines := make([]string, 0, len(counts)+1)
	lines = append(lines, "Current tally:")

	candidates := make([]string, 0, len(counts))
	for candidate := range counts {
		candidates = append(candidates, candidate)
	}
	sort.Strings(candidates)
	for _, candidate := range candidates {
		lines = append(lines, fmt.Sprintf("%s: %d", candidate, counts[candidate]))
	}
	if len(counts) == 0 {
		lines = append(lines, "No votes recorded yet.")
	}

	return s.send(lines...)
}

// send writes each line followed by '\n'.
func (s *Session) send(lines ...string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := s.conn.Write([]byte(b.String()))
	return err
}

// sendAfter reports msg to the peer and returns cause for the session log.
// A write failure wins over the original cause, since it means the peer is
// gone.
func (s *Session) sendAfter(cause error, msg string) error {
	if err := s.send(msg); err != nil {
		return err
	}
	return cause
}

// readLine reads one newline- or EOF-terminated line, trimmed.
func (s *Session) readLine() (string, error) {
	if err := s.setReadDeadline(); err != nil {
		return "", err
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readBallot reads at most bound raw bytes. A peer sending exactly one
// ciphertext is the normal case; a short read (disconnect) yields whatever
// arrived, which then fails decryption. The read deadline keeps a stalled
// peer from holding the session forever.
func (s *Session) readBallot(bound int) ([]byte, error) {
	if err := s.setReadDeadline(); err != nil {
		return nil, err
	}
	buf := make([]byte, bound)
	n, err := io.ReadFull(s.reader, buf)
	if err != nil {
		if (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)) && n > 0 {
			return buf[:n], nil
		}
		return nil, err
	}
	return buf, nil
}

func (s *Session) setReadDeadline() error {
	if s.readTimeout <= 0 {
		return nil
	}
	return s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
}

func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
