// Package release turns the tags of a branch into an ordered changelog plan.
package release

import "fmt"

// Entry is one changelog stanza to be written.
type Entry struct {
	// Version is the Debian version derived from Tag.
	Version string `yaml:"version"`
	// Tag is the source tag. Empty for the snapshot entry.
	Tag string `yaml:"tag,omitempty"`
	// Endpoint is the revision the stanza's commit range ends at.
	Endpoint string `yaml:"endpoint"`
	// Snapshot marks the synthetic entry for unreleased commits.
	Snapshot bool `yaml:"snapshot,omitempty"`
}

// Plan is the ordered list of entries for one run.
type Plan struct {
	// Root is the root commit the first range starts at.
	Root string `yaml:"root"`
	// Tip is the resolved branch tip.
	Tip string `yaml:"tip"`
	// Entries are sorted ascending by version.
	Entries []Entry `yaml:"entries"`
}

// Range is a commit range paired with the entry it produces.
type Range struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Entry Entry  `yaml:"entry"`
}

// String formats the range as a git revision range.
func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.From, r.To)
}

// Ranges pairs every entry with the endpoint of its predecessor, the first
// one starting at the root commit.
func (p *Plan) Ranges() []Range {
	ranges := make([]Range, 0, len(p.Entries))
	prev := p.Root
	for _, e := range p.Entries {
		ranges = append(ranges, Range{From: prev, To: e.Endpoint, Entry: e})
		prev = e.Endpoint
	}
	return ranges
}

// Latest returns the highest entry.
func (p *Plan) Latest() (Entry, bool) {
	if len(p.Entries) == 0 {
		return Entry{}, false
	}
	return p.Entries[len(p.Entries)-1], true
}

// Versions returns the entry versions in plan order.
func (p *Plan) Versions() []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Version
	}
	return out
}
