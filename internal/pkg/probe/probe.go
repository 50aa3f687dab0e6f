// Package probe resolves the run environment: target directory, changelog
// location, package metadata, author identity and required tools.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

const (
	// DefaultChangelogPath is relative to the target directory.
	DefaultChangelogPath = "debian/changelog"
	// DefaultUrgency is the stanza urgency when none is given.
	DefaultUrgency = "low"
	// DefaultReleaseCommand prints the distribution codename with -cs.
	DefaultReleaseCommand = "lsb_release"

	releaseCommandTimeout = 10 * time.Second
)

// Deps holds the operating-system hooks the prober uses. Tests replace them.
type Deps struct {
	// LookPath finds executables in PATH.
	LookPath func(file string) (string, error)
	// Getenv reads environment variables.
	Getenv func(key string) string
	// Hostname returns the host name.
	Hostname func() (string, error)
	// Username returns the login name of the current user.
	Username func() (string, error)
	// Output runs a command in dir and returns its stdout.
	Output func(ctx context.Context, dir, name string, args ...string) (string, error)
}

// DefaultDeps returns Deps backed by the operating system.
func DefaultDeps() Deps {
	return Deps{
		LookPath: exec.LookPath,
		Getenv:   os.Getenv,
		Hostname: os.Hostname,
		Username: currentUsername,
		Output:   commandOutput,
	}
}

// Options are the explicitly requested values. Empty fields get defaults.
type Options struct {
	Directory      string
	ChangelogPath  string
	Package        string
	Distribution   string
	Urgency        string
	AuthorName     string
	AuthorEmail    string
	ReleaseCommand string
}

// Environment is the fully resolved run environment.
type Environment struct {
	// Dir is the absolute target directory.
	Dir string
	// ChangelogPath is the absolute changelog path.
	ChangelogPath string
	Package       string
	Distribution  string
	Urgency       string
	AuthorName    string
	AuthorEmail   string
}

// Prober resolves Options into an Environment.
type Prober struct {
	deps Deps
}

// New creates a Prober. Missing hooks fall back to DefaultDeps.
func New(deps Deps) *Prober {
	def := DefaultDeps()
	if deps.LookPath == nil {
		deps.LookPath = def.LookPath
	}
	if deps.Getenv == nil {
		deps.Getenv = def.Getenv
	}
	if deps.Hostname == nil {
		deps.Hostname = def.Hostname
	}
	if deps.Username == nil {
		deps.Username = def.Username
	}
	if deps.Output == nil {
		deps.Output = def.Output
	}
	return &Prober{deps: deps}
}

// Probe resolves every field of the environment. The process working
// directory is never changed.
func (p *Prober) Probe(ctx context.Context, opts Options) (*Environment, error) {
	dir, err := ResolveDir(opts.Directory)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Dir:           dir,
		ChangelogPath: changelogPath(dir, opts.ChangelogPath),
		Package:       opts.Package,
		Urgency:       opts.Urgency,
	}
	if env.Package == "" {
		env.Package = filepath.Base(dir)
	}
	if env.Urgency == "" {
		env.Urgency = DefaultUrgency
	}

	env.AuthorEmail = p.authorEmail(opts.AuthorEmail)
	env.AuthorName = p.authorName(opts.AuthorName)

	env.Distribution, err = p.distribution(ctx, dir, opts)
	if err != nil {
		return nil, err
	}

	warnExistingChangelog(env.ChangelogPath)

	apperrors.Debug("environment: dir=%s changelog=%s package=%s distribution=%s urgency=%s author=%q <%s>",
		env.Dir, env.ChangelogPath, env.Package, env.Distribution, env.Urgency, env.AuthorName, env.AuthorEmail)
	return env, nil
}

// RequireTools checks that every named executable is on PATH.
func (p *Prober) RequireTools(tools ...string) error {
	for _, tool := range tools {
		path, err := p.deps.LookPath(tool)
		if err != nil {
			return apperrors.NewMissingToolError(tool, err)
		}
		apperrors.Debug("found %s at %s", tool, path)
	}
	return nil
}

// ResolveDir makes dir absolute and checks that it is a directory. An empty
// dir means the current directory.
func ResolveDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrDirectory,
			fmt.Sprintf("cannot resolve directory %q", dir))
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrDirectory,
			fmt.Sprintf("cannot access directory %q", abs))
	}
	if !info.IsDir() {
		return "", apperrors.New(apperrors.ErrDirectory,
			fmt.Sprintf("%q is not a directory", abs))
	}
	return abs, nil
}

func changelogPath(dir, path string) string {
	if path == "" {
		path = DefaultChangelogPath
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

func (p *Prober) authorEmail(explicit string) string {
	fromEnv := p.deps.Getenv("DEBEMAIL")
	if explicit != "" {
		if fromEnv != "" && fromEnv != explicit {
			apperrors.Warn("overriding DEBEMAIL=%s with %s", fromEnv, explicit)
		}
		return explicit
	}
	if fromEnv != "" {
		return fromEnv
	}

	username := p.username()
	host, err := p.deps.Hostname()
	if err != nil || host == "" {
		apperrors.Debug("hostname unavailable: %v", err)
		host = "localhost"
	}
	return username + "@" + host
}

func (p *Prober) authorName(explicit string) string {
	fromEnv := p.deps.Getenv("DEBFULLNAME")
	if explicit != "" {
		if fromEnv != "" && fromEnv != explicit {
			apperrors.Warn("overriding DEBFULLNAME=%s with %s", fromEnv, explicit)
		}
		return explicit
	}
	if fromEnv != "" {
		return fromEnv
	}
	return p.username()
}

func (p *Prober) username() string {
	if name := p.deps.Getenv("USER"); name != "" {
		return name
	}
	name, err := p.deps.Username()
	if err != nil || name == "" {
		apperrors.Debug("current user unavailable: %v", err)
		return "unknown"
	}
	return name
}

func (p *Prober) distribution(ctx context.Context, dir string, opts Options) (string, error) {
	if opts.Distribution != "" {
		return opts.Distribution, nil
	}

	command := opts.ReleaseCommand
	if command == "" {
		command = DefaultReleaseCommand
	}

	ctx, cancel := context.WithTimeout(ctx, releaseCommandTimeout)
	defer cancel()

	out, err := p.deps.Output(ctx, dir, command, "-cs")
	if err != nil {
		return "", apperrors.NewNoDistributionError(err)
	}
	codename := strings.TrimSpace(out)
	if codename == "" {
		return "", apperrors.NewNoDistributionError(fmt.Errorf("%s -cs printed nothing", command))
	}
	return codename, nil
}

func warnExistingChangelog(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Size() > 0 {
		apperrors.Warn("%s is not empty, new entries will be added above the existing ones", path)
	}
}

func currentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func commandOutput(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	start := time.Now()
	out, err := cmd.Output()
	apperrors.LogCommand(dir, name, args, time.Since(start), err)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}
