// Package git provides the version-control queries tag2changelog needs:
// tags merged into a revision, root commits, revision resolution and
// commit counting.
package git

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

const (
	// GitCommandTimeout is the default timeout for git commands.
	GitCommandTimeout = 30 * time.Second

	// HEAD is the symbolic name of the branch tip.
	HEAD = "HEAD"
)

// mergedFilterConstraint is the git release that introduced `git tag --merged`.
var mergedFilterConstraint = mustConstraint(">= 2.7.0")

// Client defines the interface for version-control queries.
type Client interface {
	// Version returns the version of the underlying implementation.
	Version(ctx context.Context) (string, error)
	// RootCommits lists the parentless commits reachable from rev.
	RootCommits(ctx context.Context, rev string) ([]string, error)
	// ResolveRevision returns the commit id rev points at.
	ResolveRevision(ctx context.Context, rev string) (string, error)
	// MergedTags lists the tags whose commits are reachable from rev.
	MergedTags(ctx context.Context, rev string) ([]string, error)
	// CountCommits counts commits reachable from to but not from from.
	CountCommits(ctx context.Context, from, to string) (int, error)
}

// Options configures a DefaultClient.
type Options struct {
	// WorkDir is the directory git runs in. If empty, uses the current directory.
	WorkDir string
	// Command is the git executable. Defaults to "git".
	Command string
	// Timeout bounds each git invocation. Defaults to GitCommandTimeout.
	Timeout time.Duration
}

// DefaultClient implements the Client interface using exec.CommandContext.
type DefaultClient struct {
	workDir string
	command string
	timeout time.Duration

	version string
}

// NewClient creates a new DefaultClient for the current directory.
func NewClient() *DefaultClient {
	return NewClientWithOptions(Options{})
}

// NewClientWithWorkDir creates a new DefaultClient with a specific working directory.
func NewClientWithWorkDir(workDir string) *DefaultClient {
	return NewClientWithOptions(Options{WorkDir: workDir})
}

// NewClientWithOptions creates a new DefaultClient.
func NewClientWithOptions(opts Options) *DefaultClient {
	if opts.Command == "" {
		opts.Command = "git"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = GitCommandTimeout
	}
	return &DefaultClient{
		workDir: opts.WorkDir,
		command: opts.Command,
		timeout: opts.Timeout,
	}
}

// Command returns the git executable the client runs.
func (c *DefaultClient) Command() string {
	return c.command
}

// run executes git with args and returns its trimmed stdout.
func (c *DefaultClient) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, args...)
	if c.workDir != "" {
		cmd.Dir = c.workDir
	}

	start := time.Now()
	output, err := cmd.Output()
	apperrors.LogCommand(c.workDir, c.command, args, time.Since(start), err)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewTimeoutError(ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", apperrors.NewGitError(err, strings.TrimSpace(string(exitErr.Stderr))).
				WithContext("args", strings.Join(args, " "))
		}
		return "", apperrors.NewGitError(err, "")
	}
	return strings.TrimSpace(string(output)), nil
}

// Version returns the installed git version, e.g. "2.39.2".
func (c *DefaultClient) Version(ctx context.Context) (string, error) {
	if c.version != "" {
		return c.version, nil
	}

	output, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}

	v, err := parseGitVersion(output)
	if err != nil {
		return "", err
	}
	c.version = v.String()
	return c.version, nil
}

// RootCommits lists the parentless commits reachable from rev.
func (c *DefaultClient) RootCommits(ctx context.Context, rev string) ([]string, error) {
	output, err := c.run(ctx, "rev-list", "--max-parents=0", rev)
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

// ResolveRevision returns the full commit id rev points at.
func (c *DefaultClient) ResolveRevision(ctx context.Context, rev string) (string, error) {
	return c.run(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
}

// MergedTags lists the tags reachable from rev. `git tag --merged` is used
// when git supports it, otherwise the decorations of `git log` are parsed.
func (c *DefaultClient) MergedTags(ctx context.Context, rev string) ([]string, error) {
	supported, err := c.supportsMergedFilter(ctx)
	if err != nil {
		return nil, err
	}

	if supported {
		output, err := c.run(ctx, "tag", "--merged", rev)
		if err != nil {
			return nil, err
		}
		return splitLines(output), nil
	}

	apperrors.Debug("git predates `tag --merged`, parsing log decorations")
	output, err := c.run(ctx, "log", "--simplify-by-decoration", "--decorate=full", "--pretty=format:%D", rev)
	if err != nil {
		return nil, err
	}
	return parseDecorations(output), nil
}

// CountCommits counts commits in from..to.
func (c *DefaultClient) CountCommits(ctx context.Context, from, to string) (int, error) {
	output, err := c.run(ctx, "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(output)
	if err != nil {
		return 0, apperrors.NewGitError(fmt.Errorf("unexpected rev-list output %q: %w", output, err), "")
	}
	return n, nil
}

func (c *DefaultClient) supportsMergedFilter(ctx context.Context) (bool, error) {
	raw, err := c.Version(ctx)
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return false, apperrors.NewGitError(err, "")
	}
	return mergedFilterConstraint.Check(v), nil
}

// gitVersionPattern extracts the numeric part of `git --version` output, e.g.
// "git version 2.39.2.windows.1" or "git version 2.24.3 (Apple Git-128)".
var gitVersionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// parseGitVersion parses the output of `git --version`.
func parseGitVersion(output string) (*semver.Version, error) {
	m := gitVersionPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, apperrors.NewGitError(fmt.Errorf("cannot parse git version from %q", output), "")
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	v, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], patch))
	if err != nil {
		return nil, apperrors.NewGitError(err, "")
	}
	return v, nil
}

// parseDecorations extracts tag names from `git log --pretty=format:%D`
// output. Each line is a comma separated decoration list such as
// "HEAD -> refs/heads/main, tag: refs/tags/v1.0".
func parseDecorations(output string) []string {
	var tags []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		for _, deco := range strings.Split(scanner.Text(), ",") {
			deco = strings.TrimSpace(deco)
			if !strings.HasPrefix(deco, "tag: ") {
				continue
			}
			name := strings.TrimPrefix(strings.TrimPrefix(deco, "tag: "), "refs/tags/")
			if name != "" && !seen[name] {
				seen[name] = true
				tags = append(tags, name)
			}
		}
	}
	return tags
}

// splitLines splits command output into non-empty trimmed lines.
func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}
