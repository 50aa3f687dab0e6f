// Package ui renders changelog plans and run summaries for the terminal.
package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.yaml.in/yaml/v3"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
	"github.com/gitsage/tag2changelog/internal/pkg/release"
)

// Format selects how a plan is rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", apperrors.NewUsageError(fmt.Sprintf("unknown output format %q (want table or yaml)", s))
	}
}

// Summary is the plan plus the metadata every stanza shares.
type Summary struct {
	Package      string `yaml:"package"`
	Distribution string `yaml:"distribution"`
	Urgency      string `yaml:"urgency"`
	Author       string `yaml:"author"`
	Changelog    string `yaml:"changelog"`
	Plan         *release.Plan
}

// Manager defines the interface for UI operations.
type Manager interface {
	DisplayPlan(summary *Summary) error
	ShowSuccess(message string)
}

// DefaultManager implements Manager with lipgloss styling.
type DefaultManager struct {
	out          io.Writer
	format       Format
	colorEnabled bool
	styles       *styles
}

// styles holds the lipgloss styles for UI rendering.
type styles struct {
	title    lipgloss.Style
	label    lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style
	snapshot lipgloss.Style
	border   lipgloss.Style
	success  lipgloss.Style
}

// NewDefaultManager creates a DefaultManager writing to out.
func NewDefaultManager(out io.Writer, format Format, colorEnabled bool) *DefaultManager {
	m := &DefaultManager{
		out:          out,
		format:       format,
		colorEnabled: colorEnabled,
	}
	m.initStyles()
	return m
}

// initStyles initializes the lipgloss styles.
func (m *DefaultManager) initStyles() {
	if !m.colorEnabled {
		m.styles = &styles{
			title:    lipgloss.NewStyle(),
			label:    lipgloss.NewStyle(),
			header:   lipgloss.NewStyle().Padding(0, 1),
			cell:     lipgloss.NewStyle().Padding(0, 1),
			snapshot: lipgloss.NewStyle().Padding(0, 1),
			border:   lipgloss.NewStyle(),
			success:  lipgloss.NewStyle(),
		}
		return
	}

	m.styles = &styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220")).
			Padding(0, 1),
		cell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		snapshot: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true).
			Padding(0, 1),
		border: lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")),
		success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")),
	}
}

// DisplayPlan prints the plan in the configured format.
func (m *DefaultManager) DisplayPlan(summary *Summary) error {
	if summary == nil || summary.Plan == nil {
		return fmt.Errorf("plan cannot be nil")
	}
	if m.format == FormatYAML {
		return m.displayYAML(summary)
	}
	return m.displayTable(summary)
}

func (m *DefaultManager) displayTable(summary *Summary) error {
	var sb strings.Builder

	sb.WriteString(m.styles.title.Render(fmt.Sprintf("Changelog plan for %s", summary.Package)))
	sb.WriteString("\n")
	for _, kv := range [][2]string{
		{"changelog", summary.Changelog},
		{"distribution", summary.Distribution},
		{"urgency", summary.Urgency},
		{"author", summary.Author},
	} {
		sb.WriteString(m.styles.label.Render(fmt.Sprintf("%-13s", kv[0]+":")))
		sb.WriteString(" ")
		sb.WriteString(kv[1])
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	ranges := summary.Plan.Ranges()
	rows := make([][]string, 0, len(ranges))
	for i, r := range ranges {
		tag := r.Entry.Tag
		if r.Entry.Snapshot {
			tag = "(snapshot)"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Entry.Version,
			tag,
			ShortRev(r.From),
			ShortRev(r.To),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(m.styles.border).
		Headers("#", "VERSION", "TAG", "FROM", "TO").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return m.styles.header
			case row >= 0 && row < len(ranges) && ranges[row].Entry.Snapshot:
				return m.styles.snapshot
			default:
				return m.styles.cell
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n")

	_, err := io.WriteString(m.out, sb.String())
	return err
}

// planDocument is the YAML shape of a plan.
type planDocument struct {
	Package      string          `yaml:"package"`
	Distribution string          `yaml:"distribution"`
	Urgency      string          `yaml:"urgency"`
	Author       string          `yaml:"author"`
	Changelog    string          `yaml:"changelog"`
	Root         string          `yaml:"root"`
	Tip          string          `yaml:"tip"`
	Stanzas      []release.Range `yaml:"stanzas"`
}

func (m *DefaultManager) displayYAML(summary *Summary) error {
	doc := planDocument{
		Package:      summary.Package,
		Distribution: summary.Distribution,
		Urgency:      summary.Urgency,
		Author:       summary.Author,
		Changelog:    summary.Changelog,
		Root:         summary.Plan.Root,
		Tip:          summary.Plan.Tip,
		Stanzas:      summary.Plan.Ranges(),
	}

	enc := yaml.NewEncoder(m.out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return enc.Close()
}

// ShowSuccess displays a success message to the user.
func (m *DefaultManager) ShowSuccess(message string) {
	fmt.Fprintln(m.out, m.styles.success.Render("[OK] "+message))
}

// ShortRev abbreviates full commit ids; names are returned unchanged.
func ShortRev(rev string) string {
	if len(rev) == 40 && isHex(rev) {
		return rev[:12]
	}
	return rev
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
