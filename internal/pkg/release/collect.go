package release

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
	"github.com/gitsage/tag2changelog/internal/pkg/git"
)

// Source is what the repository contributes to a plan.
type Source struct {
	Root string
	Tip  string
	Tags []string
}

// Collect resolves the root commit and branch tip, then lists the tags merged
// into the tip that match filter.
func Collect(ctx context.Context, client git.Client, filter string) (*Source, error) {
	roots, err := client.RootCommits(ctx, git.HEAD)
	if err != nil {
		return nil, err
	}
	switch len(roots) {
	case 0:
		return nil, apperrors.New(apperrors.ErrNoRootCommit, "no root commit found").
			WithSuggestion("Make sure the repository has at least one commit")
	case 1:
	default:
		apperrors.Warn("multiple root commits found (%s), using %s", strings.Join(roots, ", "), roots[0])
	}

	tip, err := client.ResolveRevision(ctx, git.HEAD)
	if err != nil {
		return nil, err
	}

	tags, err := client.MergedTags(ctx, git.HEAD)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, apperrors.NewNoTagsError("")
	}
	apperrors.Debug("found %d tags merged into %s", len(tags), tip)

	tags, err = FilterTags(tags, filter)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, apperrors.NewNoTagsError(filter)
	}

	return &Source{Root: roots[0], Tip: tip, Tags: tags}, nil
}

// FilterTags keeps the tags in which filter matches anywhere. An empty
// filter keeps everything.
func FilterTags(tags []string, filter string) ([]string, error) {
	if filter == "" {
		return append([]string(nil), tags...), nil
	}

	re, err := regexp.Compile(filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidFilter,
			fmt.Sprintf("invalid tag filter %q", filter)).
			WithSuggestion("The filter is an extended regular expression, e.g. '^v[0-9]'")
	}

	var kept []string
	for _, tag := range tags {
		if re.MatchString(tag) {
			kept = append(kept, tag)
		} else {
			apperrors.Debug("tag %s excluded by filter", tag)
		}
	}
	return kept, nil
}
