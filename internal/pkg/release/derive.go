package release

import (
	"context"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
	"github.com/gitsage/tag2changelog/internal/pkg/subst"
	"github.com/gitsage/tag2changelog/internal/pkg/version"
)

// Deriver maps tags to Debian versions.
type Deriver struct {
	pipeline *subst.Pipeline
	cmp      version.Comparator
}

// NewDeriver creates a Deriver. A nil pipeline leaves tags unchanged.
func NewDeriver(pipeline *subst.Pipeline, cmp version.Comparator) *Deriver {
	return &Deriver{pipeline: pipeline, cmp: cmp}
}

// Version derives the version for a single tag without validating it.
func (d *Deriver) Version(tag string) string {
	return d.pipeline.Apply(tag)
}

// Derive maps tags in order and validates each result against version.Floor.
// The first invalid result aborts; later tags are not looked at. When two
// tags derive the same version the later one wins.
func (d *Deriver) Derive(ctx context.Context, tags []string) ([]Entry, error) {
	var entries []Entry
	index := make(map[string]int)

	for _, tag := range tags {
		v := d.Version(tag)
		apperrors.Debug("tag %s -> version %s", tag, v)

		ok, err := version.AtLeast(ctx, d.cmp, v, version.Floor)
		if err != nil || !ok {
			appErr := apperrors.NewBadVersionError(tag, v)
			appErr.Cause = err
			return nil, appErr
		}

		entry := Entry{Version: v, Tag: tag, Endpoint: tag}
		if i, dup := index[v]; dup {
			apperrors.Warn("tags %s and %s both derive version %s, using %s",
				entries[i].Tag, tag, v, tag)
			entries[i] = entry
			continue
		}
		index[v] = len(entries)
		entries = append(entries, entry)
	}
	return entries, nil
}

// SortEntries orders entries ascending by version. Versions must be unique,
// as Derive guarantees.
func SortEntries(ctx context.Context, cmp version.Comparator, entries []Entry) ([]Entry, error) {
	byVersion := make(map[string]Entry, len(entries))
	versions := make([]string, len(entries))
	for i, e := range entries {
		byVersion[e.Version] = e
		versions[i] = e.Version
	}

	sorted, err := version.Sort(ctx, cmp, versions)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(sorted))
	for i, v := range sorted {
		out[i] = byVersion[v]
	}
	return out, nil
}

// Build derives, validates and sorts the entries for src.
func (d *Deriver) Build(ctx context.Context, src *Source) (*Plan, error) {
	entries, err := d.Derive(ctx, src.Tags)
	if err != nil {
		return nil, err
	}
	entries, err = SortEntries(ctx, d.cmp, entries)
	if err != nil {
		return nil, err
	}
	return &Plan{Root: src.Root, Tip: src.Tip, Entries: entries}, nil
}
