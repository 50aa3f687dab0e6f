package subst

import (
	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// Pipeline is an ordered list of sed scripts. Each script is applied to the
// output of the previous one.
type Pipeline struct {
	scripts []*Script
}

// Compile parses every source in order. The first malformed pattern aborts
// compilation with an error naming it.
func Compile(sources []string, extended bool) (*Pipeline, error) {
	p := &Pipeline{scripts: make([]*Script, 0, len(sources))}
	for _, src := range sources {
		s, err := Parse(src, extended)
		if err != nil {
			return nil, apperrors.NewBadPatternError(src, err)
		}
		p.scripts = append(p.scripts, s)
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(sources []string, extended bool) *Pipeline {
	p, err := Compile(sources, extended)
	if err != nil {
		panic(err)
	}
	return p
}

// Apply runs every script over s in order.
func (p *Pipeline) Apply(s string) string {
	if p == nil {
		return s
	}
	for _, script := range p.scripts {
		s = script.Apply(s)
	}
	return s
}

// Len returns the number of scripts.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.scripts)
}

// Sources returns the scripts as written, in application order.
func (p *Pipeline) Sources() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.scripts))
	for i, script := range p.scripts {
		out[i] = script.source
	}
	return out
}
