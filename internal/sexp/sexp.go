// Package sexp reads the nested list notation used by .tasklist documents.
//
// The reader understands lists, dotted pairs, double-quoted strings, bare
// atoms (symbols, keywords such as :cwd, and numbers, all kept as text) and
// line comments starting with ';'. A leading quote (') before a form is
// accepted and ignored. Nothing is ever evaluated.
//
// A dotted pair whose tail is itself a list is spliced, so (a . (b c)) reads
// exactly like (a b c).
package sexp

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a node.
type Kind int

const (
	// KindAtom is a bare symbol, keyword or number.
	KindAtom Kind = iota
	// KindString is a double-quoted string.
	KindString
	// KindList is a (possibly dotted) list.
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Node is one parsed form.
type Node struct {
	Kind Kind

	// Text holds the atom name or the decoded string value.
	Text string

	// Items are the list elements.
	Items []*Node

	// Tail is the final cdr of an improper list, nil otherwise.
	Tail *Node

	// Line and Col locate the first character of the form (1-based).
	Line int
	Col  int
}

// IsNil reports whether n is the empty list or the atom nil.
func (n *Node) IsNil() bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case KindList:
		return len(n.Items) == 0 && n.Tail == nil
	case KindAtom:
		return n.Text == "nil"
	}
	return false
}

// IsKeyword reports whether n is an atom of the form :name.
func (n *Node) IsKeyword() bool {
	return n != nil && n.Kind == KindAtom && len(n.Text) > 1 && n.Text[0] == ':'
}

// Scalar returns the text of an atom or string node.
func (n *Node) Scalar() (string, bool) {
	if n == nil || n.Kind == KindList {
		return "", false
	}
	return n.Text, true
}

// Pos returns the node position as "line:col".
func (n *Node) Pos() string {
	return fmt.Sprintf("%d:%d", n.Line, n.Col)
}

// String renders n back into list notation.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.Kind {
	case KindAtom:
		b.WriteString(n.Text)
	case KindString:
		b.WriteString(quote(n.Text))
	case KindList:
		b.WriteByte('(')
		for i, item := range n.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			item.write(b)
		}
		if n.Tail != nil {
			b.WriteString(" . ")
			n.Tail.write(b)
		}
		b.WriteByte(')')
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

// SyntaxError reports malformed input with its position.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}
