package project

import (
	"github.com/dshills/tasklist/internal/sexp"
	"github.com/dshills/tasklist/internal/subst"
)

// ParseDescriptor parses a descriptor document.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	forms, err := sexp.Parse(data)
	if err != nil {
		return nil, parseError("%w", err)
	}

	sections := forms
	if len(forms) == 1 && forms[0].Kind == sexp.KindList && len(forms[0].Items) > 0 &&
		forms[0].Items[0].Kind == sexp.KindList {
		sections = forms[0].Items
	}

	d := &Descriptor{}
	seenTasks := false
	for _, sec := range sections {
		if sec.IsNil() {
			continue
		}
		if sec.Kind != sexp.KindList || sec.Tail != nil || sec.Items[0].Kind != sexp.KindAtom {
			return nil, parseError("%s: expected (common ...) or (tasks ...)", sec.Pos())
		}

		switch head := sec.Items[0]; head.Text {
		case "common":
			if err := parseCommon(&d.Common, nested(sec.Items[1:])); err != nil {
				return nil, err
			}
		case "tasks":
			seenTasks = true
			if err := parseTasks(d, sec.Items[1:]); err != nil {
				return nil, err
			}
		default:
			return nil, parseError("%s: unknown section %q", head.Pos(), head.Text)
		}
	}

	if !seenTasks {
		return nil, parseError("missing tasks section")
	}
	return d, nil
}

// nested unwraps a property list written as a single list, so that
// (common (:cwd "x")) reads like (common :cwd "x").
func nested(items []*sexp.Node) []*sexp.Node {
	if len(items) != 1 {
		return items
	}
	inner := items[0]
	if inner.Kind != sexp.KindList || inner.Tail != nil || len(inner.Items) == 0 || !inner.Items[0].IsKeyword() {
		return items
	}
	return inner.Items
}

// plist walks keyword/value pairs, calling fn for each.
func plist(items []*sexp.Node, fn func(key string, value *sexp.Node) error) error {
	for i := 0; i < len(items); i += 2 {
		key := items[i]
		if !key.IsKeyword() {
			return parseError("%s: expected keyword, got %s", key.Pos(), key.String())
		}
		if i+1 >= len(items) {
			return parseError("%s: missing value for %s", key.Pos(), key.Text)
		}
		if err := fn(key.Text, items[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func parseCommon(c *Common, items []*sexp.Node) error {
	return plist(items, func(key string, v *sexp.Node) error {
		var err error
		switch key {
		case ":cwd":
			c.Cwd, err = scalar(key, v)
		case ":env":
			c.Env, err = stringList(key, v)
		case ":window":
			c.Window, err = scalar(key, v)
		case ":shell":
			c.Shell, err = scalar(key, v)
		case ":variables":
			c.Variables, err = variables(v)
		}
		return err
	})
}

func parseTasks(d *Descriptor, entries []*sexp.Node) error {
	for _, e := range entries {
		if e.Kind != sexp.KindList || e.Tail != nil || len(e.Items) == 0 {
			return parseError("%s: expected (identifier :key value ...)", e.Pos())
		}
		id, ok := e.Items[0].Scalar()
		if !ok || id == "" {
			return parseError("%s: task identifier must be a symbol or string", e.Items[0].Pos())
		}
		if _, dup := d.Task(id); dup {
			return parseError("%s: duplicate task %q", e.Pos(), id)
		}

		t := &TaskDef{ID: id}
		err := plist(nested(e.Items[1:]), func(key string, v *sexp.Node) error {
			var err error
			switch key {
			case ":name":
				t.Name, err = scalar(key, v)
			case ":command":
				t.Command, err = stringList(key, v)
			case ":cwd":
				t.Cwd, err = scalar(key, v)
			case ":env":
				t.Env, err = stringList(key, v)
			case ":window":
				t.Window, err = scalar(key, v)
			case ":shell":
				t.Shell, err = scalar(key, v)
			case ":display":
				var s string
				if s, err = scalar(key, v); err == nil {
					if t.Display, err = ParseDisplay(s); err != nil {
						err = parseError("%s: task %q: %v", v.Pos(), id, err)
					}
				}
			case ":default-args":
				t.DefaultArgs, err = stringList(key, v)
			}
			return err
		})
		if err != nil {
			return err
		}
		if len(t.Command) == 0 {
			return parseError("%s: task %q has no :command", e.Pos(), id)
		}
		d.Tasks = append(d.Tasks, t)
	}
	return nil
}

// scalar returns the text of a string or atom value; nil reads as empty.
func scalar(key string, v *sexp.Node) (string, error) {
	if v.IsNil() {
		return "", nil
	}
	s, ok := v.Scalar()
	if !ok {
		return "", parseError("%s: %s expects a string", v.Pos(), key)
	}
	return s, nil
}

// stringList accepts a list of scalars, or a single scalar as a one-element
// list.
func stringList(key string, v *sexp.Node) ([]string, error) {
	if v.IsNil() {
		return nil, nil
	}
	if s, ok := v.Scalar(); ok {
		return []string{s}, nil
	}
	if v.Tail != nil {
		return nil, parseError("%s: %s expects a list of strings", v.Pos(), key)
	}
	out := make([]string, 0, len(v.Items))
	for _, item := range v.Items {
		s, ok := item.Scalar()
		if !ok {
			return nil, parseError("%s: %s expects a list of strings", item.Pos(), key)
		}
		out = append(out, s)
	}
	return out, nil
}

// variables reads ((name . value) ...) pairs. (name value) is accepted too.
func variables(v *sexp.Node) (subst.Vars, error) {
	if v.IsNil() {
		return nil, nil
	}
	if v.Kind != sexp.KindList || v.Tail != nil {
		return nil, parseError("%s: :variables expects a list of pairs", v.Pos())
	}

	vars := make(subst.Vars, 0, len(v.Items))
	for _, pair := range v.Items {
		if pair.Kind != sexp.KindList || len(pair.Items) == 0 {
			return nil, parseError("%s: variable entry must be (name . value)", pair.Pos())
		}
		name, ok := pair.Items[0].Scalar()
		if !ok || name == "" {
			return nil, parseError("%s: variable name must be a string", pair.Pos())
		}

		var valueNode *sexp.Node
		switch {
		case pair.Tail != nil && len(pair.Items) == 1:
			valueNode = pair.Tail
		case pair.Tail == nil && len(pair.Items) == 2:
			valueNode = pair.Items[1]
		default:
			return nil, parseError("%s: variable entry must be (name . value)", pair.Pos())
		}

		value, err := scalar(":variables", valueNode)
		if err != nil {
			return nil, err
		}
		vars = append(vars, subst.Var{Name: name, Value: value})
	}
	return vars, nil
}
