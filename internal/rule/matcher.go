//file: internal/rule/matcher.go
package rule

import (
	"strings"
)

// MatchTopic reports whether a concrete topic matches a subscription
// filter. The filter is assumed to be syntactically valid (see
// ValidateTopicFilter); callers admit filters into a RuleSet only after
// validation.
//
// Semantics follow standard MQTT matching:
//   - "+" matches exactly one level, including an empty one
//   - a trailing "#" matches the remaining levels, including none,
//     so "a/#" matches both "a" and "a/b/c"
//   - any other level must match byte-exact
//   - topics whose first level starts with '$' are never matched by a
//     filter whose first level is a wildcard
func MatchTopic(filter, topic string) bool {
	// System topics ($SYS etc.) require a literal first filter level.
	if strings.HasPrefix(topic, "$") {
		if strings.HasPrefix(filter, "+") || strings.HasPrefix(filter, "#") {
			return false
		}
	}

	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	for i, fl := range filterLevels {
		if fl == "#" {
			// Trailing multi-level wildcard consumes the rest of the
			// topic, including zero remaining levels.
			return true
		}
		if i >= len(topicLevels) {
			// Topic ran out with a non-# filter level still pending. A
			// trailing "#" was handled above, so this cannot match.
			return false
		}
		if fl == "+" {
			continue
		}
		if fl != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
