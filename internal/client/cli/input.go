package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
//
// Example prompt format:
//
//	Prompt text
//	> _
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

// GetSecret prints prompt to w and reads a value from the terminal without
// echo. The caller should wipe the returned slice when done with it.
func GetSecret(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	secret, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// parseFundingAnswer interprets a reply to the funding offer. An empty reply
// or "y" accepts the default, "n" declines and a positive number picks the
// amount.
func parseFundingAnswer(answer string, defaultUSD float64) (float64, bool, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch answer {
	case "", "y", "yes":
		return defaultUSD, true, nil
	case "n", "no", "skip":
		return 0, false, nil
	}
	amount, err := strconv.ParseFloat(strings.TrimPrefix(answer, "$"), 64)
	if err != nil || amount <= 0 {
		return 0, false, fmt.Errorf("%q is not a positive amount", answer)
	}
	return amount, true, nil
}
