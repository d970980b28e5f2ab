// Package client implements the peer side of the voting wire protocol:
// one connection per command, newline-delimited prompts and responses, and
// a raw-bytes encrypted ballot.
package client

import (
	"bufio"
	"crypto/rsa"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/dmitrijs2005/votekeeper/internal/cryptox"
)

// Prompts the server sends on the vote path. Any other line in their place
// is a rejection verdict and ends the exchange.
const (
	tokenPrompt  = "Enter your assigned token:"
	ballotPrefix = "Send your encrypted ballot"
)

// Client speaks one command per connection to a voting server.
type Client struct {
	address string
	timeout time.Duration

	// dial is a seam for tests.
	dial func(network, address string) (net.Conn, error)
}

func New(address string, timeout time.Duration) *Client {
	return &Client{address: address, timeout: timeout, dial: net.Dial}
}

func (c *Client) connect() (net.Conn, *bufio.Reader, error) {
	conn, err := c.dial("tcp", c.address)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to %s: %w", c.address, err)
	}
	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}
	return conn, bufio.NewReader(conn), nil
}

// Register submits rawID and returns the server's verdict line, which on
// success contains the issued token.
func (c *Client) Register(rawID string) (string, error) {
	conn, r, err := c.connect()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := skipGreeting(r); err != nil {
		return "", err
	}
	if err := sendLine(conn, "register"); err != nil {
		return "", err
	}
	if _, err := readLine(r); err != nil { // ID prompt
		return "", err
	}
	if err := sendLine(conn, rawID); err != nil {
		return "", err
	}

	return readRest(r)
}

// Vote runs the full vote exchange: identifier, token, then the choice
// encrypted under pub. The returned string is the server's final verdict;
// early rejections (not registered, expired, already voted, bad token)
// come back the same way without an error.
func (c *Client) Vote(rawID, token, choice string, pub *rsa.PublicKey) (string, error) {
	conn, r, err := c.connect()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := skipGreeting(r); err != nil {
		return "", err
	}
	if err := sendLine(conn, "vote"); err != nil {
		return "", err
	}
	if _, err := readLine(r); err != nil { // ID prompt
		return "", err
	}
	if err := sendLine(conn, rawID); err != nil {
		return "", err
	}

	line, err := readLine(r)
	if err != nil {
		return "", err
	}
	if line != tokenPrompt {
		return line, nil
	}
	if err := sendLine(conn, token); err != nil {
		return "", err
	}

	line, err = readLine(r)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(line, ballotPrefix) {
		return line, nil
	}

	ciphertext, err := cryptox.Encrypt(choice, pub)
	if err != nil {
		return "", err
	}
	if _, err := conn.Write(ciphertext); err != nil {
		return "", err
	}

	return readRest(r)
}

// Tally returns the server's tally report.
func (c *Client) Tally() (string, error) {
	conn, r, err := c.connect()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := skipGreeting(r); err != nil {
		return "", err
	}
	if err := sendLine(conn, "tally"); err != nil {
		return "", err
	}

	return readRest(r)
}

func sendLine(conn net.Conn, line string) error {
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

// readLine returns the next server line without its trailing newline.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return strings.TrimRight(line, "\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\n"), nil
}

// readRest drains the connection until the server closes it and returns
// the remaining text, trimmed. The server closes the connection after its
// final response, so EOF is the normal terminator here.
func readRest(r *bufio.Reader) (string, error) {
	rest, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(rest)), nil
}

func skipGreeting(r *bufio.Reader) error {
	for i := 0; i < 2; i++ {
		if _, err := readLine(r); err != nil {
			return err
		}
	}
	return nil
}
