package release

import (
	"context"
	"fmt"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// CommitCounter counts the commits in a revision range.
type CommitCounter interface {
	CountCommits(ctx context.Context, from, to string) (int, error)
}

// SnapshotVersion formats the version of a snapshot n commits past base.
func SnapshotVersion(base string, n int) string {
	return fmt.Sprintf("%s+%d", base, n)
}

// AppendSnapshot appends an entry for the commits between the latest entry
// and the tip. It reports whether an entry was added; nothing is added when
// the tip is the latest release.
func AppendSnapshot(ctx context.Context, counter CommitCounter, plan *Plan) (bool, error) {
	latest, ok := plan.Latest()
	if !ok {
		return false, nil
	}

	n, err := counter.CountCommits(ctx, latest.Endpoint, plan.Tip)
	if err != nil {
		return false, err
	}
	if n == 0 {
		apperrors.Debug("no commits since %s, skipping snapshot", latest.Endpoint)
		return false, nil
	}

	plan.Entries = append(plan.Entries, Entry{
		Version:  SnapshotVersion(latest.Version, n),
		Endpoint: plan.Tip,
		Snapshot: true,
	})
	apperrors.Debug("snapshot %s covers %d commits since %s", SnapshotVersion(latest.Version, n), n, latest.Endpoint)
	return true, nil
}
