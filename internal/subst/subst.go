// Package subst implements %token substitution for task descriptor strings.
//
// A template is scanned left to right for %name and %N markers. Numeric
// markers index the positional arguments (1-based); named markers are looked
// up in an ordered list of variable sources where the first source holding
// the name wins. Markers that resolve to nothing are left in place. A
// backslash before the percent sign (\%) produces a literal percent sign and
// suppresses substitution. Substitution is single pass: substituted values are
// never rescanned.
package subst

import (
	"strconv"
	"strings"
)

// Source provides variable values by name.
type Source interface {
	Lookup(name string) (string, bool)
}

// Var is a single named value.
type Var struct {
	Name  string
	Value string
}

// Vars is an ordered variable set. When a name appears more than once the
// earliest entry wins.
type Vars []Var

// Lookup implements Source.
func (vs Vars) Lookup(name string) (string, bool) {
	for _, v := range vs {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Map is an unordered Source backed by a plain map.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Substitute expands the markers in template. It returns template unchanged
// when it contains no percent sign.
func Substitute(template string, args []string, sources ...Source) string {
	s, _ := SubstituteAll(template, args, sources...)
	return s
}

// SubstituteAll is Substitute that also reports whether every marker found a
// value. Escaped percent signs are not markers.
func SubstituteAll(template string, args []string, sources ...Source) (string, bool) {
	if !strings.Contains(template, "%") {
		return template, true
	}
	complete := true

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]

		if c == '\\' && i+1 < len(template) && template[i+1] == '%' {
			b.WriteByte('%')
			i += 2
			continue
		}

		if c != '%' {
			b.WriteByte(c)
			i++
			continue
		}

		name := scanToken(template, i+1)
		if name == "" {
			b.WriteByte('%')
			i++
			continue
		}

		if value, ok := lookup(name, args, sources); ok {
			b.WriteString(value)
		} else {
			b.WriteByte('%')
			b.WriteString(name)
			complete = false
		}
		i += 1 + len(name)
	}

	return b.String(), complete
}

// lookup resolves one token: positional index first, then the sources.
func lookup(name string, args []string, sources []Source) (string, bool) {
	if isDigit(name[0]) {
		if idx, err := strconv.Atoi(name); err == nil && idx >= 1 && idx <= len(args) {
			return args[idx-1], true
		}
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

// scanToken returns the token starting at s[start]. A token is either a run
// of digits or an identifier ([A-Za-z_][A-Za-z0-9_]*).
func scanToken(s string, start int) string {
	if start >= len(s) {
		return ""
	}
	end := start
	switch {
	case isDigit(s[start]):
		for end < len(s) && isDigit(s[end]) {
			end++
		}
	case isIdentStart(s[start]):
		for end < len(s) && (isIdentStart(s[end]) || isDigit(s[end])) {
			end++
		}
	}
	return s[start:end]
}

// SplitMarker splits template around the first unescaped %name marker. The
// two halves keep their escapes so they can be substituted independently.
func SplitMarker(template, name string) (before, after string, ok bool) {
	for i := 0; i < len(template); i++ {
		switch template[i] {
		case '\\':
			if i+1 < len(template) && template[i+1] == '%' {
				i++
			}
		case '%':
			tok := scanToken(template, i+1)
			if tok == name {
				return template[:i], template[i+1+len(tok):], true
			}
			i += len(tok)
		}
	}
	return template, "", false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
