package cookiestash

import "strings"

// Encode merges raw Set-Cookie header values into one cookie string.
// Every header is split on ";" and trailing empty tokens are dropped. Each distinct token is kept once,
// at the position of its first occurrence, and tokens are compared verbatim, without trimming.
// The result is joined with ";" and has no trailing separator.
func Encode(headers []string) string {
	seen := make(map[string]struct{})
	var attrs []string
	for _, h := range headers {
		for _, attr := range splitAttrs(h) {
			if _, ok := seen[attr]; ok {
				continue
			}
			seen[attr] = struct{}{}
			attrs = append(attrs, attr)
		}
	}
	return strings.Join(attrs, ";")
}

// splitAttrs splits a header value on ";" and drops all empty tokens at the end.
func splitAttrs(h string) []string {
	tokens := strings.Split(h, ";")
	for len(tokens) > 0 && tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}
