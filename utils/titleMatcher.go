package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// TitleMatcher handles title matching with multiple strategies
type TitleMatcher struct {
	minScore int
}

func NewTitleMatcher(minScore int) *TitleMatcher {
	if minScore == 0 {
		minScore = 70 // Default 70% match
	}
	return &TitleMatcher{minScore: minScore}
}

// Matches reports whether a movie title matches a search query
func (tm *TitleMatcher) Matches(query, title string) bool {
	search := tm.normalize(query)
	if search == "" {
		// blank, or only articles ("The", "a")
		raw := strings.ToLower(strings.TrimSpace(query))
		return raw == "" || strings.Contains(strings.ToLower(title), raw)
	}
	target := tm.normalize(title)

	// Strategy 1: normalized exact/contains match
	if search == target || strings.Contains(target, search) {
		return true
	}

	// Strategy 2: word-by-word matching
	if tm.wordMatchScore(search, target) >= tm.minScore {
		return true
	}

	// Strategy 3: separators between words ("blade.runner", "spider-man")
	return tm.regexMatch(query, title)
}

func (tm *TitleMatcher) normalize(title string) string {
	title = " " + strings.ToLower(title) + " "

	replacements := []struct{ old, new string }{
		{" the ", " "}, {" a ", " "}, {" an ", " "},
		{"&", " and "}, {"'s", ""}, {"'", ""},
	}
	for _, r := range replacements {
		title = strings.ReplaceAll(title, r.old, r.new)
	}

	// Remove punctuation except spaces
	var result strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			result.WriteRune(r)
		} else {
			result.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

func (tm *TitleMatcher) wordMatchScore(search, target string) int {
	searchWords := strings.Fields(search)
	if len(searchWords) == 0 {
		return 0
	}
	targetWords := strings.Fields(target)

	matchCount := 0
	for _, sw := range searchWords {
		for _, tw := range targetWords {
			if sw == tw || (len(sw) > 2 && strings.Contains(tw, sw)) {
				matchCount++
				break
			}
		}
	}

	return (matchCount * 100) / len(searchWords)
}

func (tm *TitleMatcher) regexMatch(query, title string) bool {
	words := strings.Fields(tm.normalize(query))
	if len(words) == 0 {
		return false
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}

	regex, err := regexp.Compile("(?i)" + strings.Join(quoted, `[.\s\-_:]*`))
	if err != nil {
		return false
	}
	return regex.MatchString(title)
}
