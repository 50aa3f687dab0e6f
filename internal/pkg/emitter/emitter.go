// Package emitter hands changelog stanzas to the external changelog writer.
package emitter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

const (
	// DefaultCommand is the changelog writer invoked once per stanza.
	DefaultCommand = "git-debchangelog"
	// DefaultTimeout bounds a single writer invocation.
	DefaultTimeout = 5 * time.Minute
)

// Stanza describes one changelog entry covering the commits From..To.
type Stanza struct {
	From          string
	To            string
	Version       string
	Distribution  string
	Urgency       string
	Package       string
	AuthorName    string
	AuthorEmail   string
	ChangelogPath string
}

// Emitter writes a stanza into the changelog.
type Emitter interface {
	Emit(ctx context.Context, s Stanza) error
}

// ExecEmitter runs an external changelog writer.
type ExecEmitter struct {
	argv    []string
	workDir string
	timeout time.Duration
}

// NewExecEmitter creates an ExecEmitter. command is split with shell quoting
// rules; stanza arguments are appended after it.
func NewExecEmitter(command, workDir string, timeout time.Duration) (*ExecEmitter, error) {
	if command == "" {
		command = DefaultCommand
	}
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidConfig,
			fmt.Sprintf("invalid emitter command %q", command))
	}
	if len(argv) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidConfig, "emitter command is empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecEmitter{argv: argv, workDir: workDir, timeout: timeout}, nil
}

// Program returns the executable the emitter runs.
func (e *ExecEmitter) Program() string {
	return e.argv[0]
}

// Args returns the full argument list for s, excluding the program.
func (e *ExecEmitter) Args(s Stanza) []string {
	args := append([]string(nil), e.argv[1:]...)
	return append(args,
		"--since", s.From,
		"--until", s.To,
		"--new-version", s.Version,
		"--distribution", s.Distribution,
		"--urgency", s.Urgency,
		"--package", s.Package,
		"--author-name", s.AuthorName,
		"--author-email", s.AuthorEmail,
		"--changelog", s.ChangelogPath,
		"--squash-merges",
		"--min-parents=2",
		"--quiet",
	)
}

// Emit implements Emitter.
func (e *ExecEmitter) Emit(ctx context.Context, s Stanza) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := e.Args(s)
	cmd := exec.CommandContext(ctx, e.Program(), args...)
	cmd.Dir = e.workDir
	cmd.Env = append(os.Environ(),
		"DEBFULLNAME="+s.AuthorName,
		"DEBEMAIL="+s.AuthorEmail,
	)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	apperrors.LogCommand(e.workDir, e.Program(), args, time.Since(start), err)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewTimeoutError(ctx.Err()).
				WithContext("version", s.Version).
				WithContext("range", s.From+".."+s.To)
		}
		return apperrors.NewEmitterError(s.Version, s.From, s.To, err, strings.TrimSpace(output.String()))
	}
	if out := strings.TrimSpace(output.String()); out != "" {
		apperrors.Debug("%s: %s", e.Program(), out)
	}
	return nil
}
