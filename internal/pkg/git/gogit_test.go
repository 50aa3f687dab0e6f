package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSignature = object.Signature{
	Name:  "Test User",
	Email: "test@example.com",
	When:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
}

// memRepo builds repositories in-process so the tests need no git binary.
type memRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
	wt   *gogit.Worktree
	n    int
}

func newMemRepo(t *testing.T) *memRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &memRepo{t: t, dir: dir, repo: repo, wt: wt}
}

func (m *memRepo) commit() plumbing.Hash {
	m.t.Helper()
	m.n++
	name := "CHANGES"
	require.NoError(m.t, os.WriteFile(filepath.Join(m.dir, name), []byte(fmt.Sprintf("change %d\n", m.n)), 0644))
	_, err := m.wt.Add(name)
	require.NoError(m.t, err)

	sig := testSignature
	sig.When = sig.When.Add(time.Duration(m.n) * time.Minute)
	h, err := m.wt.Commit(fmt.Sprintf("change %d", m.n), &gogit.CommitOptions{Author: &sig, Committer: &sig})
	require.NoError(m.t, err)
	return h
}

func (m *memRepo) tag(name string, h plumbing.Hash, annotated bool) {
	m.t.Helper()
	var opts *gogit.CreateTagOptions
	if annotated {
		sig := testSignature
		opts = &gogit.CreateTagOptions{Tagger: &sig, Message: "release " + name}
	}
	_, err := m.repo.CreateTag(name, h, opts)
	require.NoError(m.t, err)
}

func (m *memRepo) checkout(branch string, create bool) {
	m.t.Helper()
	require.NoError(m.t, m.wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	}))
}

func TestGoGitClient(t *testing.T) {
	m := newMemRepo(t)
	a := m.commit()
	m.tag("v1.0", a, false)
	b := m.commit()
	m.tag("v1.1", b, true)

	m.checkout("side", true)
	d := m.commit()
	m.tag("v9.9", d, false)
	m.checkout("master", false)

	c := m.commit()

	client, err := NewGoGitClient(m.dir)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("merged tags exclude unmerged branches", func(t *testing.T) {
		tags, err := client.MergedTags(ctx, HEAD)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1.0", "v1.1"}, tags)

		tags, err = client.MergedTags(ctx, "side")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1.0", "v1.1", "v9.9"}, tags)
	})

	t.Run("root commit", func(t *testing.T) {
		roots, err := client.RootCommits(ctx, HEAD)
		require.NoError(t, err)
		assert.Equal(t, []string{a.String()}, roots)
	})

	t.Run("resolve peels annotated tags", func(t *testing.T) {
		got, err := client.ResolveRevision(ctx, "v1.1")
		require.NoError(t, err)
		assert.Equal(t, b.String(), got)

		got, err = client.ResolveRevision(ctx, HEAD)
		require.NoError(t, err)
		assert.Equal(t, c.String(), got)
	})

	t.Run("count commits", func(t *testing.T) {
		n, err := client.CountCommits(ctx, "v1.0", HEAD)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = client.CountCommits(ctx, "v1.1", HEAD)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = client.CountCommits(ctx, HEAD, HEAD)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("version", func(t *testing.T) {
		v, err := client.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, GoGitVersion, v)
	})
}

func TestGoGitClient_OpensFromSubdirectory(t *testing.T) {
	m := newMemRepo(t)
	m.commit()

	sub := filepath.Join(m.dir, "debian")
	require.NoError(t, os.MkdirAll(sub, 0755))

	_, err := NewGoGitClient(sub)
	assert.NoError(t, err)
}

func TestGoGitClient_NotARepository(t *testing.T) {
	_, err := NewGoGitClient(t.TempDir())
	assert.Error(t, err)
}

func TestGoGitClient_UnknownRevision(t *testing.T) {
	m := newMemRepo(t)
	m.commit()

	client, err := NewGoGitClient(m.dir)
	require.NoError(t, err)

	_, err = client.ResolveRevision(context.Background(), "no-such-rev")
	assert.Error(t, err)
}

// TestClients_Agree checks that both implementations answer the same
// questions identically on a repository built with the git binary.
func TestClients_Agree(t *testing.T) {
	r := setupReleaseRepo(t)
	ctx := context.Background()

	execClient := NewClientWithWorkDir(r.dir)
	goClient, err := NewGoGitClient(r.dir)
	require.NoError(t, err)

	for _, client := range []Client{execClient, goClient} {
		tags, err := client.MergedTags(ctx, HEAD)
		require.NoError(t, err)
		slices.Sort(tags)
		assert.Equal(t, []string{"v1.0", "v1.1"}, tags)

		roots, err := client.RootCommits(ctx, HEAD)
		require.NoError(t, err)
		assert.Equal(t, []string{r.a}, roots)

		n, err := client.CountCommits(ctx, "v1.0", HEAD)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
}
