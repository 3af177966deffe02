package embeddings

import "regexp"

// tokenPattern splits text into word runs and single punctuation marks.
// Whitespace separates tokens and is never a token itself.
var tokenPattern = regexp.MustCompile(`\w+|[^\w\s]`)

// Truncate returns the longest prefix of text that ends with its maxTokens-th
// token. Text with maxTokens or fewer tokens is returned unchanged, as is
// all text when maxTokens <= 0. The result is always a verbatim prefix.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	locs := tokenPattern.FindAllStringIndex(text, maxTokens+1)
	if len(locs) <= maxTokens {
		return text
	}
	return text[:locs[maxTokens-1][1]]
}

// CountTokens returns the number of tokens Truncate counts in text.
func CountTokens(text string) int {
	return len(tokenPattern.FindAllStringIndex(text, -1))
}
