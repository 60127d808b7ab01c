// Package confirm prompts the operator before destructive operations.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Confirmer asks for explicit approval. Only "y" or "yes" (case
// insensitive) approves; anything else, EOF, or an interrupt declines.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// AutoApprove approves everything without prompting, for --yes runs.
type AutoApprove struct{}

func (AutoApprove) Confirm(string) (bool, error) { return true, nil }

// Interactive reads the answer from an input stream, usually stdin.
type Interactive struct {
	in  io.Reader
	out io.Writer
}

// NewInteractive creates a prompt over stdin/stdout.
func NewInteractive() *Interactive {
	return &Interactive{in: os.Stdin, out: os.Stdout}
}

// NewInteractiveWith creates a prompt over explicit streams, for tests.
func NewInteractiveWith(in io.Reader, out io.Writer) *Interactive {
	return &Interactive{in: in, out: out}
}

// Confirm displays the prompt and waits for an answer or an interrupt.
func (c *Interactive) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)

	interruptChan := make(chan os.Signal, 1)
	signal.Notify(interruptChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interruptChan)

	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		if err != nil && line == "" {
			errChan <- err
			return
		}
		inputChan <- line
	}()

	select {
	case <-interruptChan:
		fmt.Fprintln(c.out, "\nCancelled.")
		return false, nil
	case err := <-errChan:
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	case line := <-inputChan:
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}
