package models

import "regexp"

var (
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
)

// ExtractHashtags returns the deduplicated hashtags found in body, without
// the leading '#', in order of first appearance.
func ExtractHashtags(body string) []string {
	return extract(hashtagPattern, body)
}

// ExtractMentionUsernames returns the deduplicated usernames mentioned in
// body, without the leading '@', in order of first appearance. Resolution
// to user ids happens against the identity store.
func ExtractMentionUsernames(body string) []string {
	return extract(mentionPattern, body)
}

func extract(pattern *regexp.Regexp, body string) []string {
	matches := pattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}
