package probe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// fakeDeps returns Deps with a fixed environment and no process spawning.
func fakeDeps(env map[string]string) Deps {
	return Deps{
		LookPath: func(file string) (string, error) {
			if file == "missing-tool" {
				return "", errors.New("executable file not found in $PATH")
			}
			return "/usr/bin/" + file, nil
		},
		Getenv:   func(key string) string { return env[key] },
		Hostname: func() (string, error) { return "buildhost", nil },
		Username: func() (string, error) { return "fallback", nil },
		Output: func(_ context.Context, _, name string, args ...string) (string, error) {
			if name == "lsb_release" && len(args) == 1 && args[0] == "-cs" {
				return "bookworm\n", nil
			}
			return "", errors.New("unexpected command " + name)
		},
	}
}

// captureLog redirects the logger for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	apperrors.SetOutput(&buf)
	t.Cleanup(func() { apperrors.SetOutput(os.Stderr) })
	return &buf
}

func TestProbe_Defaults(t *testing.T) {
	dir := t.TempDir()
	p := New(fakeDeps(map[string]string{"USER": "alice"}))

	env, err := p.Probe(context.Background(), Options{Directory: dir})
	require.NoError(t, err)

	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, env.Dir)
	assert.Equal(t, filepath.Join(abs, "debian", "changelog"), env.ChangelogPath)
	assert.Equal(t, filepath.Base(abs), env.Package)
	assert.Equal(t, "low", env.Urgency)
	assert.Equal(t, "bookworm", env.Distribution)
	assert.Equal(t, "alice", env.AuthorName)
	assert.Equal(t, "alice@buildhost", env.AuthorEmail)
}

func TestProbe_EnvironmentIdentity(t *testing.T) {
	p := New(fakeDeps(map[string]string{
		"DEBEMAIL":    "maint@example.org",
		"DEBFULLNAME": "Jane Maintainer",
	}))

	env, err := p.Probe(context.Background(), Options{Directory: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "maint@example.org", env.AuthorEmail)
	assert.Equal(t, "Jane Maintainer", env.AuthorName)
}

func TestProbe_ExplicitIdentityOverridesEnvironment(t *testing.T) {
	log := captureLog(t)
	p := New(fakeDeps(map[string]string{
		"DEBEMAIL":    "maint@example.org",
		"DEBFULLNAME": "Jane Maintainer",
	}))

	env, err := p.Probe(context.Background(), Options{
		Directory:   t.TempDir(),
		AuthorEmail: "ci@example.org",
		AuthorName:  "CI Bot",
	})
	require.NoError(t, err)
	assert.Equal(t, "ci@example.org", env.AuthorEmail)
	assert.Equal(t, "CI Bot", env.AuthorName)
	assert.Contains(t, log.String(), "overriding DEBEMAIL")
	assert.Contains(t, log.String(), "overriding DEBFULLNAME")
}

func TestProbe_UserFallback(t *testing.T) {
	p := New(fakeDeps(nil))

	env, err := p.Probe(context.Background(), Options{Directory: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "fallback", env.AuthorName)
	assert.Equal(t, "fallback@buildhost", env.AuthorEmail)
}

func TestProbe_ExplicitValues(t *testing.T) {
	dir := t.TempDir()
	p := New(fakeDeps(nil))

	env, err := p.Probe(context.Background(), Options{
		Directory:     dir,
		ChangelogPath: "pkg/changelog",
		Package:       "hello",
		Distribution:  "trixie",
		Urgency:       "high",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.Dir, "pkg", "changelog"), env.ChangelogPath)
	assert.Equal(t, "hello", env.Package)
	assert.Equal(t, "trixie", env.Distribution)
	assert.Equal(t, "high", env.Urgency)
}

func TestProbe_AbsoluteChangelogPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "changelog")
	p := New(fakeDeps(nil))

	env, err := p.Probe(context.Background(), Options{Directory: t.TempDir(), ChangelogPath: abs})
	require.NoError(t, err)
	assert.Equal(t, abs, env.ChangelogPath)
}

func TestProbe_NoDistribution(t *testing.T) {
	deps := fakeDeps(nil)
	deps.Output = func(context.Context, string, string, ...string) (string, error) {
		return "", errors.New("lsb_release: not found")
	}

	_, err := New(deps).Probe(context.Background(), Options{Directory: t.TempDir()})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNoDistribution))
}

func TestProbe_EmptyDistribution(t *testing.T) {
	deps := fakeDeps(nil)
	deps.Output = func(context.Context, string, string, ...string) (string, error) {
		return "  \n", nil
	}

	_, err := New(deps).Probe(context.Background(), Options{Directory: t.TempDir()})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNoDistribution))
}

func TestProbe_ReleaseCommandRunsInTargetDir(t *testing.T) {
	dir := t.TempDir()
	var gotDir, gotName string
	deps := fakeDeps(nil)
	deps.Output = func(_ context.Context, d, name string, _ ...string) (string, error) {
		gotDir, gotName = d, name
		return "sid", nil
	}

	env, err := New(deps).Probe(context.Background(), Options{Directory: dir, ReleaseCommand: "my-release"})
	require.NoError(t, err)
	assert.Equal(t, env.Dir, gotDir)
	assert.Equal(t, "my-release", gotName)
}

func TestProbe_NonEmptyChangelogWarns(t *testing.T) {
	log := captureLog(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "debian"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "debian", "changelog"), []byte("hello (1.0) unstable; urgency=low\n"), 0644))

	_, err := New(fakeDeps(nil)).Probe(context.Background(), Options{Directory: dir})
	require.NoError(t, err)
	assert.Contains(t, log.String(), "is not empty")
}

func TestProbe_BadDirectory(t *testing.T) {
	p := New(fakeDeps(nil))

	_, err := p.Probe(context.Background(), Options{Directory: filepath.Join(t.TempDir(), "missing")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrDirectory))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = p.Probe(context.Background(), Options{Directory: file})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrDirectory))
}

func TestProbe_DoesNotChangeWorkingDirectory(t *testing.T) {
	before, err := os.Getwd()
	require.NoError(t, err)

	_, err = New(fakeDeps(nil)).Probe(context.Background(), Options{Directory: t.TempDir()})
	require.NoError(t, err)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRequireTools(t *testing.T) {
	p := New(fakeDeps(nil))

	assert.NoError(t, p.RequireTools("git", "git-debchangelog"))

	err := p.RequireTools("git", "missing-tool")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrMissingTool))
	assert.Contains(t, err.Error(), "missing-tool")
}

func TestCommandOutput(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()

	out, err := commandOutput(context.Background(), dir, "/bin/sh", "-c", "pwd")
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(filepath.Clean(string(bytes.TrimSpace([]byte(out)))))
	assert.Equal(t, resolved, got)

	_, err = commandOutput(context.Background(), dir, "/bin/sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}
