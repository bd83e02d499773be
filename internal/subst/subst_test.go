package subst

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute_NoMarkers(t *testing.T) {
	inputs := []string{"", "plain", "make -j4 all", "a\\b", "tab\there"}
	for _, in := range inputs {
		assert.Equal(t, in, Substitute(in, nil), "input %q", in)
	}
}

func TestSubstitute(t *testing.T) {
	sources := []Source{
		Vars{{Name: "a", Value: "1"}, {Name: "target", Value: "debug"}},
		Vars{{Name: "a", Value: "2"}, {Name: "b", Value: "two"}},
	}

	tests := []struct {
		name     string
		template string
		args     []string
		want     string
	}{
		{"escaped percent", `100\%`, nil, "100%"},
		{"escaped marker not substituted", `\%a`, nil, "%a"},
		{"positional", "build-%1", []string{"foo"}, "build-foo"},
		{"second positional", "%1 %2", []string{"x", "y"}, "x y"},
		{"positional out of range", "%3", []string{"x"}, "%3"},
		{"first source wins", "%a", nil, "1"},
		{"falls through to later source", "%b", nil, "two"},
		{"unknown left verbatim", "%unknown", nil, "%unknown"},
		{"identifier stops at punctuation", "out/%target-x", nil, "out/debug-x"},
		{"digits stop at letters", "%1abc", []string{"v"}, "vabc"},
		{"bare percent", "50% done", nil, "50% done"},
		{"trailing percent", "done %", nil, "done %"},
		{"double percent", "%%a", nil, "%1"},
		{"mixed", `%1 on %target at 100\%`, []string{"run"}, "run on debug at 100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.template, tt.args, sources...))
		})
	}
}

func TestSubstituteAll(t *testing.T) {
	vars := Vars{{Name: "a", Value: "1"}}

	tests := []struct {
		name     string
		template string
		args     []string
		want     string
		complete bool
	}{
		{"no markers", "plain", nil, "plain", true},
		{"all resolved", "%a-%1", []string{"x"}, "1-x", true},
		{"escaped is not a marker", `\%missing`, nil, "%missing", true},
		{"bare percent", "50% done", nil, "50% done", true},
		{"unknown name", "Build %missing", nil, "Build %missing", false},
		{"positional out of range", "%a %2", []string{"x"}, "1 %2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, complete := SubstituteAll(tt.template, tt.args, vars)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.complete, complete)
		})
	}
}

func TestSubstitute_SinglePass(t *testing.T) {
	sources := []Source{Vars{{Name: "a", Value: "%b"}, {Name: "b", Value: "loop"}}}
	assert.Equal(t, "%b", Substitute("%a", nil, sources...))

	self := Vars{{Name: "x", Value: "%x"}}
	assert.Equal(t, "%x-%x", Substitute("%x-%x", nil, self))
}

func TestSubstitute_NilSource(t *testing.T) {
	assert.Equal(t, "v", Substitute("%k", nil, nil, Map{"k": "v"}))
}

func TestVars_LookupFirstWins(t *testing.T) {
	vs := Vars{{Name: "k", Value: "first"}, {Name: "k", Value: "second"}}
	v, ok := vs.Lookup("k")
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	_, ok = vs.Lookup("missing")
	assert.False(t, ok)
}

func TestSplitMarker(t *testing.T) {
	tests := []struct {
		template string
		before   string
		after    string
		ok       bool
	}{
		{"bash -lc '%s'", "bash -lc '", "'", true},
		{"nix-shell --run %s", "nix-shell --run ", "", true},
		{`echo \%s then %s`, `echo \%s then `, "", true},
		{"%src %s", "%src ", "", true},
		{"time", "time", "", false},
	}

	for _, tt := range tests {
		before, after, ok := SplitMarker(tt.template, "s")
		assert.Equal(t, tt.ok, ok, tt.template)
		assert.Equal(t, tt.before, before, tt.template)
		assert.Equal(t, tt.after, after, tt.template)
	}
}

func TestGlobals(t *testing.T) {
	g := NewGlobals(map[string]string{"seed": "1"})

	v, ok := g.Get("seed")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	g.Set("b", "2")
	g.Set("a", "3")
	assert.Equal(t, Vars{{"a", "3"}, {"b", "2"}, {"seed", "1"}}, g.Snapshot())

	g.Delete("seed")
	_, ok = g.Lookup("seed")
	assert.False(t, ok)

	assert.Equal(t, "3-2", Substitute("%a-%b", nil, g))
}

func TestGlobals_Concurrent(t *testing.T) {
	g := NewGlobals(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.Set("k", "v")
				_ = Substitute("%k", nil, g)
			}
		}()
	}
	wg.Wait()

	v, _ := g.Get("k")
	assert.Equal(t, "v", v)
}
