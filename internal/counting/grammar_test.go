package counting

import "testing"

func TestNumericGrammar_ParseStrict(t *testing.T) {
	g := NumericGrammar{}

	cases := []struct {
		text string
		want int64
		ok   bool
	}{
		{"42", 42, true},
		{"  42  ", 42, true},
		{"-3", -3, true},
		{"42 is the answer", 0, false},
		{"answer 42", 0, false},
		{"hello", 0, false},
		{"", 0, false},
		{"99999999999999999999999999", 0, false}, // overflow is ordinary chat
	}
	for _, tc := range cases {
		got, ok := g.Parse(tc.text, true)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Parse(%q, strict): got=(%d,%v) want=(%d,%v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNumericGrammar_ParseLoose(t *testing.T) {
	g := NumericGrammar{}

	cases := []struct {
		text string
		want int64
		ok   bool
	}{
		{"42 is the answer", 42, true},
		{"  7!!", 7, true},
		{"-3 again", -3, true},
		{"answer 42", 0, false}, // token must lead the message
		{"42abc", 0, false},     // no word boundary
	}
	for _, tc := range cases {
		got, ok := g.Parse(tc.text, false)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Parse(%q, loose): got=(%d,%v) want=(%d,%v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNumericGrammar_WordNumbers(t *testing.T) {
	g := NumericGrammar{Words: map[string]int64{"one": 1, "two": 2, "twenty-one": 21}}

	got, ok := g.Parse("  Two ", true)
	if !ok || got != 2 {
		t.Fatalf("word parse: got=(%d,%v) want=(2,true)", got, ok)
	}
	got, ok = g.Parse("twenty-one", false)
	if !ok || got != 21 {
		t.Fatalf("hyphenated word parse: got=(%d,%v) want=(21,true)", got, ok)
	}
	// 未知の語は通常チャット扱い
	if _, ok := g.Parse("eleventy", true); ok {
		t.Fatalf("unknown word should not parse")
	}
	// 数字も引き続き受ける
	got, ok = g.Parse("3", true)
	if !ok || got != 3 {
		t.Fatalf("digit parse with words enabled: got=(%d,%v) want=(3,true)", got, ok)
	}
}

func TestAlphabeticGrammar_Parse(t *testing.T) {
	g := AlphabeticGrammar{}

	got, ok := g.Parse("a", true)
	if !ok || got != 1 {
		t.Fatalf("parse a: got=(%d,%v) want=(1,true)", got, ok)
	}
	got, ok = g.Parse("Z", true)
	if !ok || got != 26 {
		t.Fatalf("parse Z: got=(%d,%v) want=(26,true)", got, ok)
	}
	if _, ok := g.Parse("ab", true); ok {
		t.Fatalf("multi-letter strict should not parse")
	}
	got, ok = g.Parse("c you later", false)
	if !ok || got != 3 {
		t.Fatalf("loose leading letter: got=(%d,%v) want=(3,true)", got, ok)
	}
	if _, ok := g.Parse("cat", false); ok {
		t.Fatalf("word should not parse as a letter")
	}
}

func TestAlphabeticGrammar_AdvanceWraps(t *testing.T) {
	g := AlphabeticGrammar{Wrap: true}

	if got := g.Advance(0); got != 1 {
		t.Fatalf("advance from start: got=%d want=1", got)
	}
	if got := g.Advance(1); got != 2 {
		t.Fatalf("advance A: got=%d want=2", got)
	}
	if got := g.Advance(26); got != 1 {
		t.Fatalf("advance Z should wrap: got=%d want=1", got)
	}
}

func TestAlphabeticGrammar_Reverse(t *testing.T) {
	g := AlphabeticGrammar{Wrap: true, Reverse: true}

	if got := g.Advance(0); got != 26 {
		t.Fatalf("reverse start: got=%d want=26", got)
	}
	if got := g.Advance(26); got != 25 {
		t.Fatalf("reverse advance Z: got=%d want=25", got)
	}
	if got := g.Advance(1); got != 26 {
		t.Fatalf("reverse advance A should wrap: got=%d want=26", got)
	}
}

func TestAlphabeticGrammar_NoWrapEndsSequence(t *testing.T) {
	g := AlphabeticGrammar{}

	if got := g.Advance(25); got != 26 {
		t.Fatalf("advance Y: got=%d want=26", got)
	}
	// 巻き戻しなしではZで列が終わる
	if got := g.Advance(26); got != 0 {
		t.Fatalf("advance Z without wrap: got=%d want=0", got)
	}

	r := AlphabeticGrammar{Reverse: true}
	if got := r.Advance(2); got != 1 {
		t.Fatalf("reverse advance B: got=%d want=1", got)
	}
	if got := r.Advance(1); got != 0 {
		t.Fatalf("reverse advance A without wrap: got=%d want=0", got)
	}
	if got := r.Advance(0); got != 26 {
		t.Fatalf("reverse advance from start: got=%d want=26", got)
	}
}

func TestAlphabeticGrammar_Format(t *testing.T) {
	g := AlphabeticGrammar{}
	if got := g.Format(1); got != "A" {
		t.Fatalf("format 1: got=%q want=%q", got, "A")
	}
	if got := g.Format(26); got != "Z" {
		t.Fatalf("format 26: got=%q want=%q", got, "Z")
	}
	if got := g.Format(0); got != "?" {
		t.Fatalf("format 0: got=%q want=%q", got, "?")
	}
}
