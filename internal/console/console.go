package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode"

	"golang.org/x/term"
)

const ctrlC = 0x03

// ErrInterrupted is returned when Ctrl+C is pressed while the terminal is in raw mode.
var ErrInterrupted = errors.New("interrupted by user")

// Console reads single keys from in and writes prompts to out.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
	// pending is a read abandoned by a cancelled context; the next read collects it.
	pending chan keyResult
}

type keyResult struct {
	key byte
	err error
}

// New wraps in and out. Raw mode is used only when in is a terminal.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:  bufio.NewReader(in),
		out: out,
	}

	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		c.fd = int(file.Fd())
		c.isTerm = true
	}

	return c
}

// Confirm prints question and waits until y or n is pressed.
// End of input is treated as a refusal.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	c.printf("%s [y/n]: ", question)

	for {
		key, err := c.readKey(ctx)
		if errors.Is(err, io.EOF) {
			c.printf("\n")
			return false, nil
		}

		if err != nil {
			c.printf("\n")
			return false, err
		}

		switch unicode.ToLower(rune(key)) {
		case 'y':
			c.printf("y\n")
			return true, nil
		case 'n':
			c.printf("n\n")
			return false, nil
		}
	}
}

// WaitKey prints message and returns after any key or at end of input.
func (c *Console) WaitKey(ctx context.Context, message string) error {
	c.printf("%s", message)
	defer c.printf("\n")

	_, err := c.readKey(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

func (c *Console) readKey(ctx context.Context) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if !c.isTerm {
		return c.await(ctx)
	}

	state, err := term.MakeRaw(c.fd)
	if err != nil {
		return 0, fmt.Errorf("enable raw mode: %w", err)
	}

	key, err := c.await(ctx)

	if restoreErr := term.Restore(c.fd, state); restoreErr != nil && err == nil {
		err = fmt.Errorf("restore terminal: %w", restoreErr)
	}

	if err == nil && key == ctrlC {
		return 0, ErrInterrupted
	}

	return key, err
}

// await returns the next byte of input or the context error, whichever comes first.
// A read still blocked after cancellation is kept for the next call.
func (c *Console) await(ctx context.Context) (byte, error) {
	if c.pending == nil {
		c.pending = make(chan keyResult, 1)

		go func(result chan<- keyResult) {
			key, err := c.in.ReadByte()
			result <- keyResult{key: key, err: err}
		}(c.pending)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case result := <-c.pending:
		c.pending = nil

		return result.key, result.err
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
