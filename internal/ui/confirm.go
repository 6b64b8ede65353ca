package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

// Confirm prompts the user with a yes/no question. Returns true for yes.
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", StyleWarning.Render(prompt))
	return readYes(bufio.NewReader(in))
}

// ConfirmDanger is like Confirm but styled with the error color (for destructive actions).
func ConfirmDanger(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", StyleError.Render("⚠ "+prompt))
	return readYes(bufio.NewReader(in))
}

// Approver asks on the terminal before the keychain wallet signs anything.
// Requests are asked one at a time; a cancelled context counts as a refusal.
func Approver(in io.Reader, out io.Writer) wallet.Approver {
	r := bufio.NewReader(in)
	var mu sync.Mutex
	return func(ctx context.Context, req wallet.ApprovalRequest) (bool, error) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(out, "\n%s\n  %s\n%s [y/N]: ",
			StyleTitle.Render("Wallet request: "+req.Method),
			req.Summary,
			StyleWarning.Render("Approve?"))

		answer := make(chan bool, 1)
		go func() { answer <- readYes(r) }()
		select {
		case ok := <-answer:
			return ok, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func readYes(r *bufio.Reader) bool {
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}
