// Package subst compiles and applies sed scripts made of substitution
// (s/regex/replacement/flags) and transliteration (y/src/dst/) commands to
// single-line strings such as tag names.
package subst

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Command is one compiled sed command.
type Command interface {
	Apply(s string) string
	String() string
}

// Script is the command list compiled from one sed script. Commands are
// separated by ';' or newlines and run in order.
type Script struct {
	source   string
	commands []Command
}

// Parse compiles a sed script. Regexes use POSIX basic syntax like sed's
// default; set extended for sed -E semantics.
func Parse(source string, extended bool) (*Script, error) {
	p := &parser{script: source, extended: extended}
	commands, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("no commands in script")
	}
	return &Script{source: source, commands: commands}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(source string) *Script {
	s, err := Parse(source, false)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the script as written by the user.
func (s *Script) String() string {
	return s.source
}

// Commands returns the compiled commands in execution order.
func (s *Script) Commands() []Command {
	return s.commands
}

// Apply runs every command over in, each on the previous output.
func (s *Script) Apply(in string) string {
	for _, c := range s.commands {
		in = c.Apply(in)
	}
	return in
}

// Expr is one compiled substitution command.
type Expr struct {
	source   string
	re       *regexp.Regexp
	template string
	global   bool
	nth      int
}

// String returns the command as written.
func (e *Expr) String() string {
	return e.source
}

// Apply runs the substitution on s. Without the g flag only the first (or
// Nth) match is replaced; with g every match from the Nth onwards is.
func (e *Expr) Apply(s string) string {
	matches := e.re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var out []byte
	last := 0
	for i, m := range matches {
		n := i + 1
		if n < e.nth {
			continue
		}
		out = append(out, s[last:m[0]]...)
		out = e.re.ExpandString(out, e.template, s, m)
		last = m[1]
		if !e.global {
			break
		}
	}
	out = append(out, s[last:]...)
	return string(out)
}

// Transliteration is a compiled y command.
type Transliteration struct {
	source  string
	mapping map[rune]rune
}

// String returns the command as written.
func (t *Transliteration) String() string {
	return t.source
}

// Apply replaces every rune of the source set with its counterpart.
func (t *Transliteration) Apply(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := t.mapping[r]; ok {
			b.WriteRune(rep)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type parser struct {
	script   string
	pos      int
	extended bool
}

func (p *parser) done() bool {
	return p.pos >= len(p.script)
}

func (p *parser) peek() byte {
	return p.script[p.pos]
}

func (p *parser) next() byte {
	c := p.script[p.pos]
	p.pos++
	return c
}

func (p *parser) skipBlanks() {
	for !p.done() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

func (p *parser) skipSeparators() {
	for !p.done() {
		switch p.peek() {
		case ' ', '\t', '\n', ';':
			p.pos++
		default:
			return
		}
	}
}

// parseCommands reads commands until the end of the script. Comments run
// from '#' to the end of the line.
func (p *parser) parseCommands() ([]Command, error) {
	var commands []Command
	for {
		p.skipSeparators()
		if p.done() {
			return commands, nil
		}
		if p.peek() == '#' {
			for !p.done() && p.peek() != '\n' {
				p.pos++
			}
			continue
		}

		start := p.pos
		var (
			cmd Command
			err error
		)
		switch c := p.next(); c {
		case 's':
			cmd, err = p.parseSubstitute(start)
		case 'y':
			cmd, err = p.parseTransliterate(start)
		default:
			return nil, fmt.Errorf("unknown command: `%c'", c)
		}
		if err != nil {
			return nil, err
		}
		if err := p.endCommand(); err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
}

// endCommand checks that only blanks precede the next separator.
func (p *parser) endCommand() error {
	p.skipBlanks()
	if p.done() {
		return nil
	}
	switch c := p.peek(); c {
	case ';', '\n', '#':
		return nil
	default:
		return fmt.Errorf("extra characters after command: %q", c)
	}
}

func (p *parser) delimiter(cmd byte) (byte, error) {
	if p.done() {
		return 0, fmt.Errorf("unterminated `%c' command", cmd)
	}
	delim := p.next()
	if delim == '\\' || delim == '\n' || delim == ' ' {
		return 0, fmt.Errorf("invalid delimiter %q for `%c' command", delim, cmd)
	}
	return delim, nil
}

func (p *parser) parseSubstitute(start int) (*Expr, error) {
	delim, err := p.delimiter('s')
	if err != nil {
		return nil, err
	}
	pattern, err := p.readUntil('s', delim)
	if err != nil {
		return nil, err
	}
	replacement, err := p.readUntil('s', delim)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, fmt.Errorf("no previous regular expression")
	}

	e := &Expr{nth: 1}
	icase := false
flags:
	for !p.done() {
		switch p.peek() {
		case ';', '\n', ' ', '\t', '#':
			break flags
		}
		c := p.next()
		switch {
		case c == 'g':
			e.global = true
		case c == 'i' || c == 'I':
			icase = true
		case c >= '1' && c <= '9':
			numStart := p.pos - 1
			for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
				p.pos++
			}
			n, convErr := strconv.Atoi(p.script[numStart:p.pos])
			if convErr != nil {
				return nil, fmt.Errorf("invalid occurrence number in `s' command: %w", convErr)
			}
			e.nth = n
		default:
			return nil, fmt.Errorf("unknown option to `s': %q", c)
		}
	}
	e.source = p.script[start:p.pos]

	pattern = translate(pattern, p.extended)
	if icase {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression: %w", err)
	}
	e.re = re
	e.template = goTemplate(replacement)

	return e, nil
}

func (p *parser) parseTransliterate(start int) (*Transliteration, error) {
	delim, err := p.delimiter('y')
	if err != nil {
		return nil, err
	}
	rawFrom, err := p.readUntil('y', delim)
	if err != nil {
		return nil, err
	}
	rawTo, err := p.readUntil('y', delim)
	if err != nil {
		return nil, err
	}

	from, err := unescapeTransliteration(rawFrom)
	if err != nil {
		return nil, err
	}
	to, err := unescapeTransliteration(rawTo)
	if err != nil {
		return nil, err
	}

	fromRunes, toRunes := []rune(from), []rune(to)
	if len(fromRunes) != len(toRunes) {
		return nil, fmt.Errorf("strings for `y' command are different lengths")
	}
	mapping := make(map[rune]rune, len(fromRunes))
	for i, r := range fromRunes {
		mapping[r] = toRunes[i]
	}

	return &Transliteration{source: p.script[start:p.pos], mapping: mapping}, nil
}

// readUntil reads up to the next unescaped delimiter. An escaped delimiter
// becomes the literal delimiter; other escapes are kept for later stages.
func (p *parser) readUntil(cmd, delim byte) (string, error) {
	var buf strings.Builder
	for !p.done() {
		c := p.script[p.pos]
		if c == '\\' && p.pos+1 < len(p.script) {
			next := p.script[p.pos+1]
			if next == delim {
				buf.WriteByte(delim)
			} else {
				buf.WriteByte(c)
				buf.WriteByte(next)
			}
			p.pos += 2
			continue
		}
		if c == delim {
			p.pos++
			return buf.String(), nil
		}
		buf.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated `%c' command", cmd)
}

// unescapeTransliteration resolves \\, \n and \t in y command operands.
func unescapeTransliteration(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			return "", fmt.Errorf("unknown escape \\%c in `y' command", s[i])
		}
	}
	return b.String(), nil
}

// translate converts a POSIX regex to the syntax Go's regexp expects.
// Bracket expressions are copied with backslashes made literal. Outside
// them, in basic syntax \( \) \{ \} \+ \? \| are operators and the bare
// characters are literals; GNU \< and \> are word boundaries.
func translate(pattern string, extended bool) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '[' {
			i = copyBracket(&b, pattern, i)
			continue
		}
		if c == '\\' && i+1 < len(pattern) {
			next := pattern[i+1]
			i++
			if extended {
				b.WriteByte('\\')
				b.WriteByte(next)
				continue
			}
			switch next {
			case '(', ')', '{', '}', '+', '?', '|':
				b.WriteByte(next)
			case '<', '>':
				b.WriteString(`\b`)
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			continue
		}
		if !extended {
			switch c {
			case '(', ')', '{', '}', '+', '?', '|':
				b.WriteByte('\\')
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// copyBracket writes the bracket expression starting at pattern[start] and
// returns the index of its closing ']'. A ']' right after the opening '[' or
// '[^' is a member, as are [:class:], [.coll.] and [=equiv=] items. An
// unterminated expression is copied as is for regexp to reject.
func copyBracket(b *strings.Builder, pattern string, start int) int {
	j := start + 1
	if j < len(pattern) && pattern[j] == '^' {
		j++
	}
	if j < len(pattern) && pattern[j] == ']' {
		j++
	}
	for j < len(pattern) && pattern[j] != ']' {
		if pattern[j] == '[' && j+1 < len(pattern) {
			switch kind := pattern[j+1]; kind {
			case ':', '.', '=':
				if end := strings.Index(pattern[j+2:], string(kind)+"]"); end >= 0 {
					j += 2 + end + 2
					continue
				}
			}
		}
		j++
	}
	if j >= len(pattern) {
		b.WriteString(pattern[start:])
		return len(pattern) - 1
	}
	b.WriteString(strings.ReplaceAll(pattern[start:j+1], `\`, `\\`))
	return j
}

// goTemplate converts sed replacement syntax to a regexp.Expand template:
// \1..\9 and & become ${1}..${9} and ${0}, \& is a literal ampersand.
func goTemplate(repl string) string {
	var b strings.Builder
	b.Grow(len(repl) + 8)
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		switch c {
		case '\\':
			if i+1 >= len(repl) {
				b.WriteByte('\\')
				continue
			}
			i++
			next := repl[i]
			switch {
			case next >= '0' && next <= '9':
				b.WriteString("${")
				b.WriteByte(next)
				b.WriteByte('}')
			case next == 'n':
				b.WriteByte('\n')
			case next == 't':
				b.WriteByte('\t')
			case next == '$':
				b.WriteString("$$")
			default:
				b.WriteByte(next)
			}
		case '&':
			b.WriteString("${0}")
		case '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
