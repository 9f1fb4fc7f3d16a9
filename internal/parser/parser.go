package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/netn10/learn-romanian/internal/domain"
)

const (
	separator       = ":"
	alternativeSep  = "/"
	vocabularySep   = ","
	terminalPunct   = "!?."
	minSideLength   = 2
	maxLineCapacity = 1024 * 1024
)

// knownPhrases are multi-word greetings whose commas belong to the phrase.
var knownPhrases = []string{
	"bună dimineața",
	"bună ziua",
	"bună seara",
	"la revedere",
	"ce mai",
	"și eu",
	"bine ați",
	"mulțumesc",
	"și tu",
	"bună,",
	"salut,",
}

// ParseFile reads a word list from path and extracts all pairs.
func ParseFile(path string) ([]domain.ParsedPair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads "Romanian: English" lines from r. Lines that do not look
// like a pair are skipped; only read errors are returned.
func Parse(r io.Reader) ([]domain.ParsedPair, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineCapacity)

	var pairs []domain.ParsedPair
	for scanner.Scan() {
		pairs = append(pairs, ParseLine(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// ParseText is the in-memory form of Parse.
func ParseText(text string) []domain.ParsedPair {
	var pairs []domain.ParsedPair
	for _, line := range strings.Split(text, "\n") {
		pairs = append(pairs, ParseLine(line)...)
	}
	return pairs
}

// ParseLine turns a single line into zero or more pairs. The full form
// always comes first, followed by any derived alternatives in order.
func ParseLine(line string) []domain.ParsedPair {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, separator) || isSectionTitle(line) {
		return nil
	}

	left, right, _ := strings.Cut(line, separator)
	romanian := strings.TrimSpace(left)
	english := strings.TrimSpace(right)
	if runeLen(romanian) < minSideLength || runeLen(english) < minSideLength {
		return nil
	}

	workRomanian := stripTerminal(romanian)
	if workRomanian == "" || stripTerminal(english) == "" {
		return nil
	}

	full := domain.ParsedPair{Romanian: romanian, English: english}
	pairs := []domain.ParsedPair{full}

	var parts []string
	switch {
	case strings.Contains(workRomanian, alternativeSep):
		parts = strings.Split(workRomanian, alternativeSep)
	case shouldSplitCommas(romanian, workRomanian):
		parts = strings.Split(workRomanian, vocabularySep)
	default:
		return pairs
	}

	for _, part := range parts {
		part = stripTerminal(strings.TrimSpace(part))
		if runeLen(part) < minSideLength {
			continue
		}
		pairs = append(pairs, domain.ParsedPair{Romanian: part, English: english})
	}
	return pairs
}

// isSectionTitle matches lines like "Greetings (formal) - see below: x"
// where a parenthesised group precedes the first colon.
func isSectionTitle(line string) bool {
	open := strings.Index(line, "(")
	if open < 0 {
		return false
	}
	closing := strings.Index(line[open:], ")")
	if closing < 0 {
		return false
	}
	return !strings.Contains(line[:open+closing+1], separator)
}

// shouldSplitCommas decides whether commas separate distinct vocabulary
// items. Rules are evaluated in order and the first decisive one wins.
// The sentence punctuation check runs on the text before stripping.
func shouldSplitCommas(original, work string) bool {
	if !strings.Contains(work, vocabularySep) {
		return false
	}
	if strings.ContainsAny(original, terminalPunct) {
		return false
	}
	if len(strings.Fields(work)) > 2 {
		return false
	}

	lower := strings.ToLower(work)
	for _, phrase := range knownPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}

	parts := strings.Split(work, vocabularySep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch {
	case len(parts) == 2:
		// "Greeting, Name"
		if first, _ := utf8.DecodeRuneInString(parts[1]); unicode.IsUpper(first) {
			return false
		}
		for _, p := range parts {
			if wordCount(p) > 1 {
				return false
			}
		}
		return true
	case len(parts) >= 3:
		for _, p := range parts {
			if wordCount(p) != 1 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func stripTerminal(s string) string {
	return strings.TrimRight(s, terminalPunct)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
