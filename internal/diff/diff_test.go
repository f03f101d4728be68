package diff

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/scrivener/pkg/types"
)

func TestToChanges_Identity(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"x",
		"The quick brown fox jumps over the lazy dog.",
		"Ünïcödé text with ümlauts, emoji 🙂 and CJK 漢字.",
		"  leading and trailing whitespace  ",
		"line one\nline two\n",
	}
	for _, in := range inputs {
		got, err := ToChanges(in, in)
		if err != nil {
			t.Fatalf("ToChanges(%q, %q): %v", in, in, err)
		}
		if got == nil {
			t.Errorf("ToChanges(%q, %q) = nil, want empty slice", in, in)
		}
		if len(got) != 0 {
			t.Errorf("ToChanges(%q, %q) = %v, want []", in, in, got)
		}
	}
}

func TestToChanges_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		original  string
		corrected string
		want      []types.Change
	}{
		{
			name:      "replacement covers whole word",
			original:  "eror",
			corrected: "error",
			want:      []types.Change{{StartIndex: 0, EndIndex: 4, Resolution: "error"}},
		},
		{
			name:      "pure deletion includes trailing space",
			original:  "a big test",
			corrected: "a test",
			want:      []types.Change{{StartIndex: 2, EndIndex: 6, Resolution: ""}},
		},
		{
			name:      "bare insertion is not reported",
			original:  "a test",
			corrected: "a very good test",
			want:      []types.Change{},
		},
		{
			name:      "insertion into empty original",
			original:  "",
			corrected: "hello",
			want:      []types.Change{},
		},
		{
			name:      "everything deleted",
			original:  "hello",
			corrected: "",
			want:      []types.Change{{StartIndex: 0, EndIndex: 5, Resolution: ""}},
		},
		{
			name:      "offsets count code points",
			original:  "café au lait",
			corrected: "café o lait",
			want:      []types.Change{{StartIndex: 5, EndIndex: 7, Resolution: "o"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ToChanges(tt.original, tt.corrected)
			if err != nil {
				t.Fatalf("ToChanges: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ToChanges(%q, %q) mismatch (-want +got):\n%s", tt.original, tt.corrected, diff)
			}
		})
	}
}

func TestChanges_BoundsAndOrdering(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"I has a eror in this sentense.", "I have an error in this sentence."},
		{"Their going too the store tomorow", "They're going to the store tomorrow."},
		{"He go to school. She like apples!", "He goes to school. She likes apples!"},
		{"no changes here", "no changes here"},
		{"short", "a much longer replacement sentence than before"},
		{"a much longer original sentence than after", "short"},
	}

	for _, g := range []Granularity{GranularityWord, GranularityChar} {
		b := NewBuilder(Config{Granularity: g, SemanticCleanup: true})
		for _, p := range pairs {
			got, err := b.Changes(p[0], p[1])
			if err != nil {
				t.Fatalf("%s Changes(%q, %q): %v", g, p[0], p[1], err)
			}
			n := len([]rune(p[0]))
			prevEnd := 0
			for i, c := range got {
				if c.StartIndex < 0 || c.StartIndex > c.EndIndex || c.EndIndex > n {
					t.Errorf("%s %q: change %d = %+v out of bounds [0,%d]", g, p[0], i, c, n)
				}
				if c.StartIndex < prevEnd {
					t.Errorf("%s %q: change %d = %+v overlaps or precedes previous end %d", g, p[0], i, c, prevEnd)
				}
				prevEnd = c.EndIndex
			}
		}
	}
}

func TestBuild_ReproducesInputs(t *testing.T) {
	t.Parallel()

	ascii := [][2]string{
		{"", ""},
		{"abc", "abc"},
		{"The cat sat on teh mat.", "The cat sat on the mat."},
		{"We was late", "We were late."},
	}
	unicode := [][2]string{
		{"ünï cödé", "uni code"},
		{"😀 smile", "🙂 smile"},
	}
	for _, g := range []Granularity{GranularityWord, GranularityChar} {
		pairs := ascii
		if g == GranularityWord {
			pairs = append(pairs, unicode...)
		}
		for _, cleanup := range []bool{true, false} {
			b := NewBuilder(Config{Granularity: g, SemanticCleanup: cleanup})
			for _, p := range pairs {
				ops, err := b.Build(p[0], p[1])
				if err != nil {
					t.Fatalf("Build(%q, %q): %v", p[0], p[1], err)
				}
				if got := Source(ops); got != p[0] {
					t.Errorf("Source = %q, want %q", got, p[0])
				}
				if got := Target(ops); got != p[1] {
					t.Errorf("Target = %q, want %q", got, p[1])
				}
			}
		}
	}
}

func TestBuild_IdenticalInputs(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultConfig())

	ops, err := b.Build("", "")
	if err != nil {
		t.Fatalf("Build empty: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("Build(\"\", \"\") = %v, want no ops", ops)
	}

	ops, err = b.Build("same text", "same text")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []Operation{{Op: OpEqual, Text: "same text"}}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ops  []Operation
		want []types.Change
	}{
		{
			name: "empty script",
			ops:  nil,
			want: []types.Change{},
		},
		{
			name: "replacement resolution is trimmed",
			ops: []Operation{
				{OpEqual, "go "},
				{OpDelete, "home"},
				{OpInsert, "  house \n"},
			},
			want: []types.Change{{StartIndex: 3, EndIndex: 7, Resolution: "house"}},
		},
		{
			name: "consecutive deletions are independent",
			ops: []Operation{
				{OpDelete, "ab"},
				{OpDelete, "cd"},
				{OpEqual, "ef"},
			},
			want: []types.Change{
				{StartIndex: 0, EndIndex: 2},
				{StartIndex: 2, EndIndex: 4},
			},
		},
		{
			name: "insert after insert is not consumed twice",
			ops: []Operation{
				{OpDelete, "x"},
				{OpInsert, "y"},
				{OpInsert, "z"},
				{OpEqual, "!"},
				{OpDelete, "?"},
			},
			want: []types.Change{
				{StartIndex: 0, EndIndex: 1, Resolution: "y"},
				{StartIndex: 2, EndIndex: 3},
			},
		},
		{
			name: "insert before delete does not pair",
			ops: []Operation{
				{OpInsert, "new"},
				{OpDelete, "old"},
			},
			want: []types.Change{{StartIndex: 0, EndIndex: 3}},
		},
		{
			name: "inserts do not advance the offset",
			ops: []Operation{
				{OpEqual, "ab"},
				{OpInsert, "XYZ"},
				{OpEqual, "c"},
				{OpDelete, "d"},
			},
			want: []types.Change{{StartIndex: 3, EndIndex: 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(tt.ops)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_UnknownOp(t *testing.T) {
	t.Parallel()

	_, err := Extract([]Operation{{Op: Op(7), Text: "?"}})
	if !errors.Is(err, ErrMalformedScript) {
		t.Fatalf("err = %v, want ErrMalformedScript", err)
	}
}

func TestToChanges_Deterministic(t *testing.T) {
	t.Parallel()

	a := "Me and him goes to the libary every day, but we doesnt read."
	b := "He and I go to the library every day, but we don't read."
	first, err := ToChanges(a, b)
	if err != nil {
		t.Fatalf("ToChanges: %v", err)
	}
	for range 5 {
		again, err := ToChanges(a, b)
		if err != nil {
			t.Fatalf("ToChanges: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("non-deterministic result (-first +again):\n%s", diff)
		}
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Hello, world!", []string{"Hello", ",", " ", "world", "!"}},
		{"don't  stop", []string{"don't", "  ", "stop"}},
		{"...", []string{".", ".", "."}},
		{"x_1 42", []string{"x_1", " ", "42"}},
		{"naïve café", []string{"naïve", " ", "café"}},
	}
	for _, tt := range tests {
		got := tokenize(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("tokenize(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
		if strings.Join(got, "") != tt.in {
			t.Errorf("tokenize(%q) does not concatenate back to input", tt.in)
		}
	}
}

func TestSymbolTable_SkipsSurrogates(t *testing.T) {
	t.Parallel()

	var tab symbolTable
	tokens := make([]string, surrogateMin+16)
	for i := range tokens {
		tokens[i] = "t" + strconv.Itoa(i)
	}
	runes, ok := tab.encode(tokens)
	if !ok {
		t.Fatal("encode reported overflow")
	}
	for i, r := range runes {
		if r >= surrogateMin && r < surrogateMin+surrogateLen {
			t.Fatalf("token %d encoded to surrogate %U", i, r)
		}
	}
	got, ok := tab.decode(string(runes))
	if !ok {
		t.Fatal("decode failed")
	}
	if want := strings.Join(tokens, ""); got != want {
		t.Error("decode did not reproduce the token stream")
	}
}
