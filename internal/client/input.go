package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from
// reader. The trailing newline is trimmed. If EOF occurs after some input
// was read, the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetToken reads the voting token without echo when stdin is a terminal,
// so tokens do not end up in scrollback. Falls back to a plain line read
// otherwise (pipes, tests).
func GetToken(reader *bufio.Reader, w io.Writer) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return GetSimpleText(reader, "Enter your token", w)
	}

	if _, err := fmt.Fprint(w, "Enter your token: "); err != nil {
		return "", err
	}
	token, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(token)), nil
}
