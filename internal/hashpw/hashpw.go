// Package hashpw implements the operator tool that turns a password typed at
// the terminal into a bcrypt hash suitable for the users table.
package hashpw

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/fittrack/internal/server/auth"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrMismatch = errors.New("passwords do not match")

func prompt(w io.Writer, text string) ([]byte, error) {
	if _, err := fmt.Fprint(w, text); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Run asks for the password twice without echo and writes the hash to out.
// Prompts go to w so that out can be redirected.
func Run(w, out io.Writer, cost int) error {
	first, err := prompt(w, "Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer wipe(first)

	second, err := prompt(w, "Repeat password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer wipe(second)

	if !bytes.Equal(first, second) {
		return ErrMismatch
	}
	if len(first) == 0 {
		return errors.New("empty password")
	}

	hash, err := auth.HashPassword(string(first), cost)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, hash)
	return err
}
