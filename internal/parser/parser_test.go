package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/netn10/learn-romanian/internal/domain"
)

func pair(ro, en string) domain.ParsedPair {
	return domain.ParsedPair{Romanian: ro, English: en}
}

func TestParseText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []domain.ParsedPair
	}{
		{
			name:     "Simple pair",
			input:    "ceai: tea",
			expected: []domain.ParsedPair{pair("ceai", "tea")},
		},
		{
			name:  "Comma separated vocabulary",
			input: "cuvânt1, cuvânt2: meaning",
			expected: []domain.ParsedPair{
				pair("cuvânt1, cuvânt2", "meaning"),
				pair("cuvânt1", "meaning"),
				pair("cuvânt2", "meaning"),
			},
		},
		{
			name:     "Greeting with a name is kept whole",
			input:    "Bună ziua, Maria: Hello, Maria",
			expected: []domain.ParsedPair{pair("Bună ziua, Maria", "Hello, Maria")},
		},
		{
			name:  "Slash alternatives",
			input: "formA / formB: meaning",
			expected: []domain.ParsedPair{
				pair("formA / formB", "meaning"),
				pair("formA", "meaning"),
				pair("formB", "meaning"),
			},
		},
		{
			name:     "Header without colon",
			input:    "Just a header (no colon)",
			expected: nil,
		},
		{
			name:     "Empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "Parenthesised section title before the colon",
			input:    "Greetings (formal): ",
			expected: nil,
		},
		{
			name:     "Parenthesis after the colon is fine",
			input:    "pisică: cat (animal)",
			expected: []domain.ParsedPair{pair("pisică", "cat (animal)")},
		},
		{
			name:     "Only the first colon splits",
			input:    "ora: time: 10:30",
			expected: []domain.ParsedPair{pair("ora", "time: 10:30")},
		},
		{
			name:     "Too short side",
			input:    "a: letter a",
			expected: nil,
		},
		{
			name:     "Empty english side",
			input:    "casă:   ",
			expected: nil,
		},
		{
			name:     "Original punctuation is preserved in output",
			input:    "Noroc!: Cheers!",
			expected: []domain.ParsedPair{pair("Noroc!", "Cheers!")},
		},
		{
			name:     "Sentence punctuation keeps commas intact",
			input:    "Da, mersi!: Yes, thanks!",
			expected: []domain.ParsedPair{pair("Da, mersi!", "Yes, thanks!")},
		},
		{
			name:     "Known phrase keeps commas intact",
			input:    "salut, ana: hi, ana",
			expected: []domain.ParsedPair{pair("salut, ana", "hi, ana")},
		},
		{
			name:     "More than two words never splits",
			input:    "foarte bine, mersi: very well, thanks",
			expected: []domain.ParsedPair{pair("foarte bine, mersi", "very well, thanks")},
		},
		{
			name:  "Three single words split",
			input: "unu,doi,trei: one two three",
			expected: []domain.ParsedPair{
				pair("unu,doi,trei", "one two three"),
				pair("unu", "one two three"),
				pair("doi", "one two three"),
				pair("trei", "one two three"),
			},
		},
		{
			name:  "Short derived segments are dropped",
			input: "o / una: one",
			expected: []domain.ParsedPair{
				pair("o / una", "one"),
				pair("una", "one"),
			},
		},
		{
			name: "Multiple lines keep file order",
			input: `Food
pâine: bread

apă: water
`,
			expected: []domain.ParsedPair{pair("pâine", "bread"), pair("apă", "water")},
		},
		{
			name:     "Windows line endings",
			input:    "lapte: milk\r\n",
			expected: []domain.ParsedPair{pair("lapte", "milk")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseText(tc.input)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("ParseText(%q) = %+v, expected %+v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestParseMatchesParseText(t *testing.T) {
	input := "ceai: tea\ncuvânt1, cuvânt2: meaning\nHeader\nformA / formB: meaning"

	fromReader, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	fromText := ParseText(input)
	if !reflect.DeepEqual(fromReader, fromText) {
		t.Errorf("Parse() = %+v, ParseText() = %+v", fromReader, fromText)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drinks.txt")
	if err := os.WriteFile(path, []byte("vin: wine\nbere: beer\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	pairs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() returned an unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs, but got %d", len(pairs))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestParseIsIdempotentForDerivedPairs(t *testing.T) {
	for _, p := range ParseText("cuvânt1, cuvânt2: meaning\nformA / formB: meaning")[1:] {
		if p.Romanian == "formB" || p.Romanian == "formA" || strings.HasPrefix(p.Romanian, "cuvânt") {
			reparsed := ParseText(p.Romanian + ": " + p.English)
			if len(reparsed) != 1 || reparsed[0] != p {
				t.Errorf("Re-parsing %+v produced %+v", p, reparsed)
			}
		}
	}
}

func TestParsedSidesAreNeverShort(t *testing.T) {
	input := strings.Join([]string{
		"a: b", "ab: cd", " x , y : z ", ":", "::", "ok:  no", "da/nu: yes/no",
		"ă, î: letters", "mă / te: me / you", "Salut!: Hi",
	}, "\n")

	for _, p := range ParseText(input) {
		if utf8.RuneCountInString(strings.TrimSpace(p.Romanian)) < 2 || utf8.RuneCountInString(strings.TrimSpace(p.English)) < 2 {
			t.Errorf("Parser emitted a pair with a short side: %+v", p)
		}
	}
}
