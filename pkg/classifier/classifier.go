// Package classifier scores article text against fixed topic vocabularies.
package classifier

import (
	"regexp"
	"sort"
	"strings"
)

const (
	CategoryEnergy    = "energy"
	CategoryFinancial = "financial"
	CategoryAI        = "ai"

	// DefaultMinScore is the relevance threshold used when callers do not supply one.
	DefaultMinScore = 2

	pointsPerMatch = 2
)

// Vocabulary holds the phrase lists per category. Matching is case-insensitive.
type Vocabulary struct {
	Energy    []string
	Financial []string
	AI        []string
}

// Result is the outcome of classifying one article.
type Result struct {
	Keywords   []string
	Categories []string
	Score      int
}

type phrase struct {
	text string
	re   *regexp.Regexp
}

type category struct {
	name    string
	phrases []phrase
}

// Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	categories []category
}

// New compiles the vocabulary into whole-word patterns.
func New(v Vocabulary) *Classifier {
	return &Classifier{
		categories: []category{
			{name: CategoryEnergy, phrases: compile(v.Energy)},
			{name: CategoryFinancial, phrases: compile(v.Financial)},
			{name: CategoryAI, phrases: compile(v.AI)},
		},
	}
}

// Default returns a classifier over DefaultVocabulary.
func Default() *Classifier {
	return New(DefaultVocabulary())
}

// Classify matches the vocabulary against the title (counted twice) and content.
// Empty content yields the zero Result regardless of the title.
func (c *Classifier) Classify(content, title string) Result {
	if content == "" {
		return Result{Keywords: []string{}, Categories: []string{}}
	}

	text := strings.ToLower(content)
	if title != "" {
		t := strings.ToLower(title)
		text = t + " " + t + " " + text
	}

	res := Result{Keywords: []string{}, Categories: []string{}}
	seen := make(map[string]struct{})

	for _, cat := range c.categories {
		matched := 0
		for _, p := range cat.phrases {
			if !p.re.MatchString(text) {
				continue
			}
			matched++
			if _, ok := seen[p.text]; !ok {
				seen[p.text] = struct{}{}
				res.Keywords = append(res.Keywords, p.text)
			}
		}
		if matched > 0 {
			res.Categories = append(res.Categories, cat.name)
			res.Score += matched * pointsPerMatch
		}
	}

	sort.Strings(res.Categories)
	return res
}

// IsRelevant reports whether the article scores at least minScore.
func (c *Classifier) IsRelevant(content, title string, minScore int) bool {
	return c.Classify(content, title).Score >= minScore
}

// FilterByKeywords reports whether any required keyword occurs as a whole word in
// the title or content. An empty list accepts everything.
func FilterByKeywords(content, title string, required []string) bool {
	if len(required) == 0 {
		return true
	}

	text := strings.ToLower(content)
	if title != "" {
		text = strings.ToLower(title) + " " + text
	}

	for _, kw := range required {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if wordPattern(kw).MatchString(text) {
			return true
		}
	}
	return false
}

func compile(list []string) []phrase {
	out := make([]phrase, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, raw := range list {
		p := strings.ToLower(strings.TrimSpace(raw))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, phrase{text: p, re: wordPattern(p)})
	}
	return out
}

func wordPattern(p string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
}
