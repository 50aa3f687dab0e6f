package version

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

const (
	// DpkgCommandTimeout bounds a single dpkg --compare-versions call.
	DpkgCommandTimeout = 10 * time.Second
)

// DpkgComparator compares versions with `dpkg --compare-versions`.
type DpkgComparator struct {
	command string
}

// NewDpkgComparator creates a comparator running command, or "dpkg" when empty.
func NewDpkgComparator(command string) *DpkgComparator {
	if command == "" {
		command = "dpkg"
	}
	return &DpkgComparator{command: command}
}

// Command returns the executable the comparator runs.
func (c *DpkgComparator) Command() string {
	return c.command
}

// Compare implements Comparator with at most two dpkg invocations.
func (c *DpkgComparator) Compare(ctx context.Context, a, b string) (int, error) {
	lt, err := c.relation(ctx, a, "lt", b)
	if err != nil {
		return 0, err
	}
	if lt {
		return -1, nil
	}

	eq, err := c.relation(ctx, a, "eq", b)
	if err != nil {
		return 0, err
	}
	if eq {
		return 0, nil
	}
	return 1, nil
}

// relation asks dpkg whether `a op b` holds. Exit status 0 means true,
// 1 means false; anything else (bad syntax, missing binary) is an error.
func (c *DpkgComparator) relation(ctx context.Context, a, op, b string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DpkgCommandTimeout)
	defer cancel()

	args := []string{"--compare-versions", a, op, b}
	cmd := exec.CommandContext(ctx, c.command, args...)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	apperrors.LogCommand("", c.command, args, time.Since(start), err)

	if err == nil {
		return true, nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return false, apperrors.NewTimeoutError(ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}

	appErr := apperrors.Wrap(err, apperrors.ErrCompareFailed,
		fmt.Sprintf("cannot compare versions %q and %q", a, b))
	if out := strings.TrimSpace(string(output)); out != "" {
		appErr.WithContext("output", out)
	}
	return false, appErr
}
