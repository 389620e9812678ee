package merge

import (
	"strings"
	"testing"
)

func TestMerge_EmptyInputs(t *testing.T) {
	inputs := []string{"", "   ", "bom dia", "  bom dia  ", "the quick brown fox"}

	for _, s := range inputs {
		t.Run(s, func(t *testing.T) {
			want := strings.TrimSpace(s)
			if got := Merge(s, ""); got != want {
				t.Errorf("Merge(%q, \"\") = %q, want %q", s, got, want)
			}
			if got := Merge("", s); got != want {
				t.Errorf("Merge(\"\", %q) = %q, want %q", s, got, want)
			}
		})
	}
}

func TestMerge_Examples(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		addition string
		want     string
	}{
		{
			name:     "overlapping words",
			base:     "the quick brown fox jumps over",
			addition: "fox jumps over the lazy dog",
			want:     "the quick brown fox jumps over the lazy dog",
		},
		{
			name:     "no overlap",
			base:     "good morning",
			addition: "see you later",
			want:     "good morning see you later",
		},
		{
			name:     "case insensitive keeps addition casing",
			base:     "Eu quero falar com o GERENTE",
			addition: "gerente da loja amanha",
			want:     "Eu quero falar com o GERENTE da loja amanha",
		},
		{
			name:     "overlap shorter than minimum is not merged",
			base:     "hello wor",
			addition: "world is big",
			want:     "hello wor world is big",
		},
		{
			name:     "surrounding whitespace trimmed",
			base:     "  bom dia  ",
			addition: "  tudo bem  ",
			want:     "bom dia tudo bem",
		},
		{
			name:     "multibyte characters",
			base:     "a reunião começa às três",
			addition: "começa às três horas",
			want:     "a reunião começa às três horas",
		},
		{
			name:     "addition entirely contained in tail",
			base:     "vamos fechar o pedido",
			addition: "fechar o pedido",
			want:     "vamos fechar o pedido",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Merge(tt.base, tt.addition); got != tt.want {
				t.Errorf("Merge(%q, %q) = %q, want %q", tt.base, tt.addition, got, tt.want)
			}
		})
	}
}

func TestMerger_ConfigurableMinOverlap(t *testing.T) {
	m := Merger{MinOverlap: 4}

	got := m.Merge("Hello Worl", "world!")
	if got != "Hello World!" {
		t.Errorf("expected %q, got %q", "Hello World!", got)
	}

	// Default bound rejects the same 4-character overlap
	if got := Merge("Hello Worl", "world!"); got != "Hello Worl world!" {
		t.Errorf("expected no merge with default bound, got %q", got)
	}
}

func TestMerger_LowerBoundAdmitsShortOverlap(t *testing.T) {
	m := Merger{MinOverlap: 5}

	got := m.Merge("the quick brown fox jumps", "jumps over the lazy dog")
	if got != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("unexpected merge: %q", got)
	}
}

func TestMerger_MaxOverlapWindow(t *testing.T) {
	// Overlap of 13 characters falls outside a 10 character window
	m := Merger{MaxOverlap: 10}
	got := m.Merge("abc repeated text", "repeated text more")
	if got != "abc repeated text repeated text more" {
		t.Errorf("unexpected merge outside window: %q", got)
	}

	wide := Merger{MaxOverlap: 20}
	got = wide.Merge("abc repeated text", "repeated text more")
	if got != "abc repeated text more" {
		t.Errorf("expected merge within window, got %q", got)
	}
}

func TestMerge_ShortInputsDoNotPanic(t *testing.T) {
	tests := []struct {
		base     string
		addition string
	}{
		{"a", "b"},
		{"abcdef", "abcdef"},
		{"x", "a much longer addition than the base"},
		{"a much longer base than the addition", "y"},
	}

	for _, tt := range tests {
		_ = Merge(tt.base, tt.addition)
	}

	if got := Merge("abcdef", "abcdef"); got != "abcdef" {
		t.Errorf("expected full overlap to collapse, got %q", got)
	}
}

func TestMerge_PrefersLargestOverlap(t *testing.T) {
	// "ha ha ha ha" overlaps at several lengths; the largest must win
	got := Merge("he said ha ha ha ha", "ha ha ha ha and left")
	if got != "he said ha ha ha ha and left" {
		t.Errorf("expected greedy largest overlap, got %q", got)
	}
}
