package credential

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptAndSave interactively collects a username and PIN on stdin/stdout,
// validates them, and saves the resulting Store to path. It's the fallback
// main() reaches for when auth.json doesn't exist yet.
func PromptAndSave(path string) (*Store, error) {
	reader := bufio.NewReader(os.Stdin)

	var username string
	for {
		fmt.Print("choose a username (3-32 chars, letters/digits/_/-): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("credential: reading username: %w", err)
		}
		username = strings.TrimSpace(line)
		if ValidateUsername(username) {
			break
		}
		fmt.Println("invalid username, try again")
	}

	var pin string
	for {
		pin = readPINNoEcho("choose a 6-digit PIN: ")
		if ValidatePIN(pin) {
			confirm := readPINNoEcho("confirm PIN: ")
			if confirm == pin {
				break
			}
			fmt.Println("PINs did not match, try again")
			continue
		}
		fmt.Println("PIN must be exactly 6 digits")
	}

	store, err := New(username, pin)
	if err != nil {
		return nil, err
	}
	if err := Save(path, store); err != nil {
		return nil, err
	}
	return store, nil
}

// readPINNoEcho reads a line from stdin without echoing it, falling back to
// a visible prompt if stdin isn't a terminal (e.g. piped input in tests or
// non-interactive deploys).
func readPINNoEcho(prompt string) string {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
