package sexp

import (
	"strings"
	"unicode/utf8"
)

// Parse reads every top-level form in src.
func Parse(src []byte) ([]*Node, error) {
	r := &reader{src: string(src), line: 1, col: 1}

	var forms []*Node
	for {
		r.skipSpace()
		if r.eof() {
			return forms, nil
		}
		n, err := r.readForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, n)
	}
}

// reader is a single-use cursor over the input.
type reader struct {
	src  string
	pos  int
	line int
	col  int
}

func (r *reader) eof() bool {
	return r.pos >= len(r.src)
}

func (r *reader) peek() byte {
	return r.src[r.pos]
}

func (r *reader) advance() byte {
	c := r.src[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else if utf8.RuneStart(c) {
		r.col++
	}
	return c
}

func (r *reader) errorf(line, col int, msg string) error {
	return &SyntaxError{Line: line, Col: col, Msg: msg}
}

func (r *reader) skipSpace() {
	for !r.eof() {
		switch c := r.peek(); {
		case c == ';':
			for !r.eof() && r.peek() != '\n' {
				r.advance()
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			r.advance()
		default:
			return
		}
	}
}

func (r *reader) readForm() (*Node, error) {
	line, col := r.line, r.col

	switch c := r.peek(); c {
	case '\'':
		r.advance()
		r.skipSpace()
		if r.eof() {
			return nil, r.errorf(line, col, "quote at end of input")
		}
		return r.readForm()
	case '(':
		return r.readList()
	case ')':
		return nil, r.errorf(line, col, "unexpected ')'")
	case '"':
		return r.readString()
	default:
		return r.readAtom()
	}
}

func (r *reader) readList() (*Node, error) {
	n := &Node{Kind: KindList, Line: r.line, Col: r.col}
	r.advance() // (

	for {
		r.skipSpace()
		if r.eof() {
			return nil, r.errorf(n.Line, n.Col, "unterminated list")
		}

		c := r.peek()
		if c == ')' {
			r.advance()
			return n, nil
		}

		if c == '.' && r.isDelimiterAt(r.pos+1) {
			dotLine, dotCol := r.line, r.col
			if len(n.Items) == 0 {
				return nil, r.errorf(dotLine, dotCol, "dot with no preceding element")
			}
			r.advance()
			r.skipSpace()
			if r.eof() {
				return nil, r.errorf(dotLine, dotCol, "missing element after dot")
			}
			tail, err := r.readForm()
			if err != nil {
				return nil, err
			}
			r.skipSpace()
			if r.eof() || r.peek() != ')' {
				return nil, r.errorf(dotLine, dotCol, "more than one element after dot")
			}
			r.advance()

			if tail.Kind == KindList {
				n.Items = append(n.Items, tail.Items...)
				n.Tail = tail.Tail
			} else if !tail.IsNil() {
				n.Tail = tail
			}
			return n, nil
		}

		item, err := r.readForm()
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, item)
	}
}

func (r *reader) readString() (*Node, error) {
	n := &Node{Kind: KindString, Line: r.line, Col: r.col}
	r.advance() // "

	var b strings.Builder
	for {
		if r.eof() {
			return nil, r.errorf(n.Line, n.Col, "unterminated string")
		}
		c := r.advance()
		switch c {
		case '"':
			n.Text = b.String()
			return n, nil
		case '\\':
			if r.eof() {
				return nil, r.errorf(n.Line, n.Col, "unterminated string")
			}
			switch e := r.advance(); e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\n':
				// line continuation
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
}

func (r *reader) readAtom() (*Node, error) {
	n := &Node{Kind: KindAtom, Line: r.line, Col: r.col}
	start := r.pos
	for !r.eof() && !r.isDelimiterAt(r.pos) {
		r.advance()
	}
	if r.pos == start {
		return nil, r.errorf(n.Line, n.Col, "unexpected character")
	}
	n.Text = r.src[start:r.pos]
	return n, nil
}

// isDelimiterAt reports whether the byte at i ends an atom.
func (r *reader) isDelimiterAt(i int) bool {
	if i >= len(r.src) {
		return true
	}
	switch r.src[i] {
	case ' ', '\t', '\n', '\r', '\f', '(', ')', '"', ';', '\'':
		return true
	}
	return false
}
