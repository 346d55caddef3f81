package chunker_test

import (
	"strings"
	"testing"

	"github.com/voxdoc/voxdoc/internal/chunker"
)

func texts(units []chunker.TextUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Text
	}
	return out
}

func TestChunk_SentenceBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "plain sentences",
			in:   "The sky darkened. Rain began to fall. Everyone ran inside.",
			want: []string{"The sky darkened.", "Rain began to fall.", "Everyone ran inside."},
		},
		{
			name: "abbreviation does not split",
			in:   "Dr. Smith arrived at noon. She left an hour later.",
			want: []string{"Dr. Smith arrived at noon.", "She left an hour later."},
		},
		{
			name: "initial does not split",
			in:   "J. Smith wrote the report. It was thorough.",
			want: []string{"J. Smith wrote the report.", "It was thorough."},
		},
		{
			name: "latin abbreviation",
			in:   "Bring supplies, e.g. Rope and water. Then head north.",
			want: []string{"Bring supplies, e.g. Rope and water.", "Then head north."},
		},
		{
			name: "decimal number does not split",
			in:   "The reading was 3.14 exactly. Nobody believed it.",
			want: []string{"The reading was 3.14 exactly.", "Nobody believed it."},
		},
		{
			name: "terminator run stays together",
			in:   "What was that?! Nobody knew.",
			want: []string{"What was that?!", "Nobody knew."},
		},
		{
			name: "closing quote after terminator",
			in:   `He said "Stop." Then he left.`,
			want: []string{`He said "Stop."`, "Then he left."},
		},
		{
			name: "trailing text without terminator",
			in:   "First sentence. And a trailing fragment",
			want: []string{"First sentence.", "And a trailing fragment"},
		},
		{
			name: "ellipsis followed by lowercase continues",
			in:   "He paused... then spoke again.",
			want: []string{"He paused... then spoke again."},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := texts(chunker.Chunk(tc.in, 0))
			if len(got) != len(tc.want) {
				t.Fatalf("want %d units %q, got %d units %q", len(tc.want), tc.want, len(got), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("unit %d: want %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\t  \n"} {
		if got := chunker.Chunk(in, 0); len(got) != 0 {
			t.Errorf("Chunk(%q) = %d units, want none", in, len(got))
		}
	}
}

func TestChunk_Indices(t *testing.T) {
	t.Parallel()

	units := chunker.Chunk("One. Two. Three. Four.", 0)
	if len(units) != 4 {
		t.Fatalf("want 4 units, got %d", len(units))
	}
	for i, u := range units {
		if u.Index != i {
			t.Errorf("unit %d has Index %d", i, u.Index)
		}
	}
}

func TestChunk_OversizeSplitsAtClause(t *testing.T) {
	t.Parallel()

	in := "The expedition packed food, water and rope, then set out before dawn on the long road north."
	units := chunker.Chunk(in, 50)
	if len(units) < 2 {
		t.Fatalf("want sentence split into multiple units, got %q", texts(units))
	}
	for _, u := range units {
		if n := len([]rune(u.Text)); n > 50 {
			t.Errorf("unit %q is %d runes, over the 50 budget", u.Text, n)
		}
	}
	// The preferred cut is after a comma, so the first piece ends with one.
	if !strings.HasSuffix(units[0].Text, ",") {
		t.Errorf("first piece should end at a clause boundary, got %q", units[0].Text)
	}
}

func TestChunk_OversizeSplitsAtWhitespace(t *testing.T) {
	t.Parallel()

	in := "the quick brown fox jumps over the lazy dog again and again"
	units := chunker.Chunk(in, 20)
	if len(units) < 3 {
		t.Fatalf("want several units, got %q", texts(units))
	}
	for _, u := range units {
		if n := len([]rune(u.Text)); n > 20 {
			t.Errorf("unit %q is %d runes, over the 20 budget", u.Text, n)
		}
		if strings.ContainsAny(u.Text[:1]+u.Text[len(u.Text)-1:], " \t\n") {
			t.Errorf("unit %q has surrounding whitespace", u.Text)
		}
	}
}

func TestChunk_UnbreakableTokenEmittedWhole(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 40)
	units := chunker.Chunk("short "+long+" tail", 10)

	found := false
	for _, u := range units {
		if u.Text == long {
			found = true
		}
		if strings.Contains(u.Text, " ") && len([]rune(u.Text)) > 10 {
			t.Errorf("oversize multi-word unit %q", u.Text)
		}
	}
	if !found {
		t.Fatalf("long token should be emitted whole, got %q", texts(units))
	}
}

// TestChunk_Lossless verifies that every unit is an exact substring of the
// input and that consecutive units are separated only by whitespace, so the
// original text can be reconstructed from the units and their offsets.
func TestChunk_Lossless(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Dr. Smith arrived at noon. She left an hour later.\n\nThe end.",
		"One long sentence with several clauses, each adding more words, until the budget is well and truly exceeded by the whole.",
		"  Leading space. Trailing space.  ",
		"No terminator at all just words",
	}

	for _, in := range inputs {
		units := chunker.Chunk(in, 40)
		prevEnd := 0
		for i, u := range units {
			if in[u.Start:u.End] != u.Text {
				t.Fatalf("unit %d: Text %q does not match input[%d:%d] %q", i, u.Text, u.Start, u.End, in[u.Start:u.End])
			}
			if gap := in[prevEnd:u.Start]; strings.TrimSpace(gap) != "" {
				t.Fatalf("non-whitespace gap %q before unit %d", gap, i)
			}
			prevEnd = u.End
		}
		if tail := in[prevEnd:]; strings.TrimSpace(tail) != "" {
			t.Fatalf("non-whitespace tail %q after last unit", tail)
		}
	}
}

func TestChunk_DefaultMaxLen(t *testing.T) {
	t.Parallel()

	// maxLen below 1 falls back to the default budget.
	in := strings.Repeat("word ", 100) + "end."
	units := chunker.Chunk(in, -5)
	for _, u := range units {
		if n := len([]rune(u.Text)); n > chunker.DefaultMaxLen {
			t.Errorf("unit of %d runes exceeds DefaultMaxLen %d", n, chunker.DefaultMaxLen)
		}
	}
}
