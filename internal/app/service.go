// Package app contains the application layer with business orchestration logic.
package app

import (
	"context"
	"fmt"

	"github.com/gitsage/tag2changelog/internal/pkg/emitter"
	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
	"github.com/gitsage/tag2changelog/internal/pkg/git"
	"github.com/gitsage/tag2changelog/internal/pkg/probe"
	"github.com/gitsage/tag2changelog/internal/pkg/release"
	"github.com/gitsage/tag2changelog/internal/pkg/subst"
	"github.com/gitsage/tag2changelog/internal/pkg/ui"
	"github.com/gitsage/tag2changelog/internal/pkg/version"
)

// RunOptions contains options for one changelog run.
type RunOptions struct {
	// Filter keeps only tags it matches. Empty keeps all.
	Filter string
	// Patterns are sed substitutions applied in order to every tag.
	Patterns []string
	// Extended selects ERE instead of BRE syntax for Patterns.
	Extended bool
	// Snapshot appends an entry for commits after the latest tag.
	Snapshot bool
	// DryRun prints the plan instead of writing the changelog.
	DryRun bool
}

// Locker guards the changelog against concurrent runs.
type Locker interface {
	Acquire() error
	Release() error
}

// ChangelogService orchestrates the changelog generation workflow.
type ChangelogService struct {
	gitClient  git.Client
	comparator version.Comparator
	emitter    emitter.Emitter
	uiManager  ui.Manager
	env        *probe.Environment
	locker     Locker
}

// NewChangelogService creates a new ChangelogService with the given
// dependencies. locker may be nil to run without locking.
func NewChangelogService(
	gitClient git.Client,
	comparator version.Comparator,
	em emitter.Emitter,
	uiManager ui.Manager,
	env *probe.Environment,
	locker Locker,
) *ChangelogService {
	return &ChangelogService{
		gitClient:  gitClient,
		comparator: comparator,
		emitter:    em,
		uiManager:  uiManager,
		env:        env,
		locker:     locker,
	}
}

// Run orchestrates the complete workflow.
// Workflow: compile patterns → collect tags → derive → sort → snapshot → emit (or display)
//
// Every tag is derived and validated before the first stanza is written, so
// a bad tag never leaves a partially updated changelog behind.
func (s *ChangelogService) Run(ctx context.Context, opts *RunOptions) (*release.Plan, error) {
	if opts == nil {
		opts = &RunOptions{}
	}

	// Step 1: Compile substitution patterns
	pipeline, err := subst.Compile(opts.Patterns, opts.Extended)
	if err != nil {
		return nil, err
	}
	apperrors.Debug("compiled %d substitution patterns", pipeline.Len())

	// Step 2: Collect tags merged into the branch tip
	src, err := release.Collect(ctx, s.gitClient, opts.Filter)
	if err != nil {
		return nil, err
	}

	// Step 3: Derive and sort versions
	plan, err := release.NewDeriver(pipeline, s.comparator).Build(ctx, src)
	if err != nil {
		return nil, err
	}

	// Step 4: Optional snapshot entry
	if opts.Snapshot {
		if _, err := release.AppendSnapshot(ctx, s.gitClient, plan); err != nil {
			return nil, err
		}
	}

	if opts.DryRun {
		return plan, s.uiManager.DisplayPlan(s.summary(plan))
	}

	// Step 5: Write one stanza per entry
	if err := s.emit(ctx, plan); err != nil {
		return plan, err
	}

	s.uiManager.ShowSuccess(fmt.Sprintf("wrote %d changelog entries to %s", len(plan.Entries), s.env.ChangelogPath))
	return plan, nil
}

// emit writes the plan under the run lock. The cursor starts at the root
// commit and advances to each entry's endpoint after its stanza is written.
func (s *ChangelogService) emit(ctx context.Context, plan *release.Plan) (err error) {
	if s.locker != nil {
		if err := s.locker.Acquire(); err != nil {
			return err
		}
		defer func() {
			if releaseErr := s.locker.Release(); releaseErr != nil && err == nil {
				err = releaseErr
			}
		}()
	}

	for _, r := range plan.Ranges() {
		if err := ctx.Err(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrEmitterFailed, "interrupted").
				WithContext("version", r.Entry.Version)
		}

		stanza := s.stanza(r)
		if err := s.emitter.Emit(ctx, stanza); err != nil {
			return err
		}
		apperrors.Info("added %s (%s)", r.Entry.Version, rangeLabel(r))
	}
	return nil
}

func (s *ChangelogService) stanza(r release.Range) emitter.Stanza {
	return emitter.Stanza{
		From:          r.From,
		To:            r.To,
		Version:       r.Entry.Version,
		Distribution:  s.env.Distribution,
		Urgency:       s.env.Urgency,
		Package:       s.env.Package,
		AuthorName:    s.env.AuthorName,
		AuthorEmail:   s.env.AuthorEmail,
		ChangelogPath: s.env.ChangelogPath,
	}
}

func (s *ChangelogService) summary(plan *release.Plan) *ui.Summary {
	return &ui.Summary{
		Package:      s.env.Package,
		Distribution: s.env.Distribution,
		Urgency:      s.env.Urgency,
		Author:       fmt.Sprintf("%s <%s>", s.env.AuthorName, s.env.AuthorEmail),
		Changelog:    s.env.ChangelogPath,
		Plan:         plan,
	}
}

func rangeLabel(r release.Range) string {
	return ui.ShortRev(r.From) + ".." + ui.ShortRev(r.To)
}
