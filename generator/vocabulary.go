package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	minCuratedTerms = 3
	maxCuratedTerms = 8
)

// Vocabulary is the static list of asset search tags. Loaded once, then
// read-only.
type Vocabulary struct {
	tags []string
	set  map[string]struct{}
}

type tagsFile struct {
	Tags []string `json:"tags"`
}

// LoadVocabulary reads a {"tags": [...]} document.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tags file: %w", err)
	}
	var f tagsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tags file %s: %w", path, err)
	}
	v := NewVocabulary(f.Tags)
	if len(v.tags) < minCuratedTerms {
		return nil, fmt.Errorf("tags file %s must list at least %d tags", path, minCuratedTerms)
	}
	return v, nil
}

func NewVocabulary(tags []string) *Vocabulary {
	v := &Vocabulary{set: make(map[string]struct{}, len(tags))}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := v.set[t]; dup {
			continue
		}
		v.set[t] = struct{}{}
		v.tags = append(v.tags, t)
	}
	return v
}

func (v *Vocabulary) Len() int { return len(v.tags) }

func (v *Vocabulary) Contains(term string) bool {
	_, ok := v.set[strings.TrimSpace(term)]
	return ok
}

// PromptList renders the tags the way the curation prompt lists them.
func (v *Vocabulary) PromptList() string {
	return strings.Join(v.tags, ", ")
}

// Filter keeps vocabulary members only, drops duplicates, preserves order
// and caps the result at limit.
func (v *Vocabulary) Filter(terms []string, limit int) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if !v.Contains(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
