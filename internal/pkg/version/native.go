package version

import (
	"context"
	"fmt"
	"regexp"

	debversion "pault.ag/go/debian/version"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// syntaxPattern is the shape Debian policy allows: optional numeric epoch,
// an upstream part starting with a digit, optional revision.
var syntaxPattern = regexp.MustCompile(`^(?:[0-9]+:)?[0-9][A-Za-z0-9.+~:-]*$`)

// NativeComparator compares versions in-process without dpkg.
type NativeComparator struct{}

// NewNativeComparator creates a NativeComparator.
func NewNativeComparator() *NativeComparator {
	return &NativeComparator{}
}

// Compare implements Comparator.
func (NativeComparator) Compare(_ context.Context, a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return sign(debversion.Compare(va, vb)), nil
}

// Parse validates s against Debian version syntax and parses it.
func Parse(s string) (debversion.Version, error) {
	if !syntaxPattern.MatchString(s) || s[len(s)-1] == '-' {
		return debversion.Version{}, apperrors.New(apperrors.ErrCompareFailed,
			fmt.Sprintf("version %q has bad syntax", s))
	}
	v, err := debversion.Parse(s)
	if err != nil {
		return debversion.Version{}, apperrors.Wrap(err, apperrors.ErrCompareFailed,
			fmt.Sprintf("version %q has bad syntax", s))
	}
	return v, nil
}

// Valid reports whether s is a well-formed Debian version.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
