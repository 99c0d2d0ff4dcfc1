package providers

import "strings"

// ArrayCandidate returns the substring from the first '[' to the last ']'.
// Models often wrap JSON in prose or code fences; this is all that survives.
func ArrayCandidate(content string) (string, bool) {
	return delimited(content, "[", "]")
}

// ObjectCandidate returns the substring from the first '{' to the last '}'.
func ObjectCandidate(content string) (string, bool) {
	return delimited(content, "{", "}")
}

func delimited(content, open, closing string) (string, bool) {
	start := strings.Index(content, open)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(content, closing)
	if end <= start {
		return "", false
	}
	return content[start : end+1], true
}
