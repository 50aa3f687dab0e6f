package git

import (
	"context"
	"errors"
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// GoGitVersion is reported by GoGitClient.Version.
const GoGitVersion = "go-git/v5"

// GoGitClient implements Client in-process with go-git, for hosts without a
// git binary.
type GoGitClient struct {
	workDir string
	repo    *gogit.Repository
}

// NewGoGitClient opens the repository containing workDir.
func NewGoGitClient(workDir string) (*GoGitClient, error) {
	apperrors.Debug("[go-git] opening repository at %s", workDir)

	repo, err := gogit.PlainOpenWithOptions(workDir, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, apperrors.NewGitError(fmt.Errorf("opening repository at %s: %w", workDir, err), "")
	}
	return &GoGitClient{workDir: workDir, repo: repo}, nil
}

// Version implements Client.
func (c *GoGitClient) Version(_ context.Context) (string, error) {
	return GoGitVersion, nil
}

// ResolveRevision implements Client.
func (c *GoGitClient) ResolveRevision(_ context.Context, rev string) (string, error) {
	h, err := c.resolve(rev)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// RootCommits implements Client.
func (c *GoGitClient) RootCommits(ctx context.Context, rev string) ([]string, error) {
	from, err := c.resolve(rev)
	if err != nil {
		return nil, err
	}

	var roots []string
	err = c.walk(ctx, from, func(commit *object.Commit) {
		if commit.NumParents() == 0 {
			roots = append(roots, commit.Hash.String())
		}
	})
	if err != nil {
		return nil, err
	}
	return roots, nil
}

// MergedTags implements Client. Tags are returned sorted by name, the order
// `git tag --merged` uses.
func (c *GoGitClient) MergedTags(ctx context.Context, rev string) ([]string, error) {
	from, err := c.resolve(rev)
	if err != nil {
		return nil, err
	}
	reachable, err := c.reachable(ctx, from)
	if err != nil {
		return nil, err
	}

	refs, err := c.repo.Tags()
	if err != nil {
		return nil, apperrors.NewGitError(fmt.Errorf("listing tags: %w", err), "")
	}

	var tags []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		target, ok := c.peel(ref.Hash())
		if !ok {
			apperrors.Debug("[go-git] skipping tag %s: does not point at a commit", ref.Name().Short())
			return nil
		}
		if _, ok := reachable[target]; ok {
			tags = append(tags, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewGitError(fmt.Errorf("listing tags: %w", err), "")
	}

	sort.Strings(tags)
	return tags, nil
}

// CountCommits implements Client.
func (c *GoGitClient) CountCommits(ctx context.Context, from, to string) (int, error) {
	fromHash, err := c.resolve(from)
	if err != nil {
		return 0, err
	}
	toHash, err := c.resolve(to)
	if err != nil {
		return 0, err
	}

	excluded, err := c.reachable(ctx, fromHash)
	if err != nil {
		return 0, err
	}
	count := 0
	err = c.walk(ctx, toHash, func(commit *object.Commit) {
		if _, ok := excluded[commit.Hash]; !ok {
			count++
		}
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// resolve turns a revision into a commit hash, peeling annotated tags.
func (c *GoGitClient) resolve(rev string) (plumbing.Hash, error) {
	h, err := c.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, apperrors.NewGitError(fmt.Errorf("resolving %s: %w", rev, err), "")
	}
	if peeled, ok := c.peel(*h); ok {
		return peeled, nil
	}
	return *h, nil
}

// peel returns the commit a tag object or commit hash refers to.
func (c *GoGitClient) peel(h plumbing.Hash) (plumbing.Hash, bool) {
	tag, err := c.repo.TagObject(h)
	if err == nil {
		commit, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, false
		}
		return commit.Hash, true
	}
	if !errors.Is(err, plumbing.ErrObjectNotFound) {
		return plumbing.ZeroHash, false
	}
	if _, err := c.repo.CommitObject(h); err != nil {
		return plumbing.ZeroHash, false
	}
	return h, true
}

// reachable collects every commit reachable from h.
func (c *GoGitClient) reachable(ctx context.Context, h plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	seen := make(map[plumbing.Hash]struct{})
	err := c.walk(ctx, h, func(commit *object.Commit) {
		seen[commit.Hash] = struct{}{}
	})
	return seen, err
}

// walk visits every commit reachable from h once.
func (c *GoGitClient) walk(ctx context.Context, h plumbing.Hash, visit func(*object.Commit)) error {
	iter, err := c.repo.Log(&gogit.LogOptions{From: h})
	if err != nil {
		return apperrors.NewGitError(fmt.Errorf("reading history from %s: %w", h, err), "")
	}
	defer iter.Close()

	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		visit(commit)
		return nil
	})
	if err != nil {
		return apperrors.NewGitError(fmt.Errorf("reading history from %s: %w", h, err), "")
	}
	return nil
}
