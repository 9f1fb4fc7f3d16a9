package domain

import (
	"strings"
	"time"
)

// Card is a single Romanian / English vocabulary or phrase pairing.
type Card struct {
	ID        string    `json:"id"`
	English   string    `json:"english"`
	Romanian  string    `json:"romanian"`
	Tags      []string  `json:"tags"`
	SourceID  *int64    `json:"source_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ParsedPair is produced by the bulk text parser before persistence.
// Storage assigns the ID and creation time when it becomes a Card.
type ParsedPair struct {
	Romanian string `json:"romanian"`
	English  string `json:"english"`
}

// Valid reports whether both sides are non-blank after trimming.
func (p ParsedPair) Valid() bool {
	return strings.TrimSpace(p.Romanian) != "" && strings.TrimSpace(p.English) != ""
}

// CardUpdate carries a partial update. Nil fields are left untouched.
type CardUpdate struct {
	English  *string
	Romanian *string
	Tags     *[]string
}

// Empty reports whether the update would change nothing.
func (u CardUpdate) Empty() bool {
	return u.English == nil && u.Romanian == nil && u.Tags == nil
}

// TagCount is a tag together with the number of cards carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ImportResult reports the outcome of a bulk create.
type ImportResult struct {
	AddedCount   int    `json:"added_count"`
	SkippedCount int    `json:"skipped_count"`
	TotalParsed  int    `json:"total_parsed"`
	Added        []Card `json:"added_cards"`
}

// NormalizeTags trims and lower-cases tags, dropping blanks and repeats
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
