// Package version orders Debian version strings. Comparison is delegated to
// a Comparator so the dpkg binary can be swapped for an in-process
// implementation or a test double.
package version

import (
	"context"
	"fmt"
	"slices"

	"github.com/gitsage/tag2changelog/internal/pkg/cache"
	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// Floor is the lowest version a derived version may compare to.
const Floor = "0.0"

// Backend names accepted by New.
const (
	BackendDpkg   = "dpkg"
	BackendNative = "native"
)

// Comparator defines a total order over Debian version strings.
// Compare returns a negative number when a < b, zero when equal and a
// positive number when a > b.
type Comparator interface {
	Compare(ctx context.Context, a, b string) (int, error)
}

// New returns the comparator for backend, wrapped in a memo of cacheSize
// entries.
func New(backend string, cacheSize int) (Comparator, error) {
	var inner Comparator
	switch backend {
	case "", BackendDpkg:
		inner = NewDpkgComparator("")
	case BackendNative:
		inner = NewNativeComparator()
	default:
		return nil, apperrors.New(apperrors.ErrInvalidConfig,
			fmt.Sprintf("unknown compare backend %q", backend)).
			WithSuggestion("Use compare.backend: dpkg or native")
	}
	return NewCachingComparator(inner, cacheSize), nil
}

// AtLeast reports whether v compares greater than or equal to floor.
func AtLeast(ctx context.Context, cmp Comparator, v, floor string) (bool, error) {
	r, err := cmp.Compare(ctx, v, floor)
	if err != nil {
		return false, err
	}
	return r >= 0, nil
}

// Sort returns versions in ascending comparator order. The sort is stable,
// so equal versions keep their input order. The first comparator error
// aborts the sort.
func Sort(ctx context.Context, cmp Comparator, versions []string) ([]string, error) {
	out := slices.Clone(versions)

	var firstErr error
	slices.SortStableFunc(out, func(a, b string) int {
		if firstErr != nil {
			return 0
		}
		r, err := cmp.Compare(ctx, a, b)
		if err != nil {
			firstErr = err
			return 0
		}
		return sign(r)
	})

	if firstErr != nil {
		return nil, apperrors.Wrap(firstErr, apperrors.ErrCompareFailed, "failed to sort versions")
	}
	return out, nil
}

// IsSorted reports whether versions are in non-decreasing comparator order.
func IsSorted(ctx context.Context, cmp Comparator, versions []string) (bool, error) {
	for i := 1; i < len(versions); i++ {
		r, err := cmp.Compare(ctx, versions[i-1], versions[i])
		if err != nil {
			return false, err
		}
		if r > 0 {
			return false, nil
		}
	}
	return true, nil
}

// CachingComparator memoizes another comparator. Both orientations of a
// pair are stored after one comparison.
type CachingComparator struct {
	inner Comparator
	memo  cache.Manager[int]
}

// NewCachingComparator wraps inner with an LRU of size entries.
func NewCachingComparator(inner Comparator, size int) *CachingComparator {
	return &CachingComparator{
		inner: inner,
		memo:  cache.NewLRUCache[int](size),
	}
}

// Compare implements Comparator.
func (c *CachingComparator) Compare(ctx context.Context, a, b string) (int, error) {
	if a == b {
		return 0, nil
	}
	if r, ok := c.memo.Get(cache.PairKey(a, b)); ok {
		return r, nil
	}

	r, err := c.inner.Compare(ctx, a, b)
	if err != nil {
		return 0, err
	}
	r = sign(r)
	c.memo.Set(cache.PairKey(a, b), r)
	c.memo.Set(cache.PairKey(b, a), -r)
	return r, nil
}

func sign(r int) int {
	switch {
	case r < 0:
		return -1
	case r > 0:
		return 1
	default:
		return 0
	}
}
