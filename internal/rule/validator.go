//file: internal/rule/validator.go
package rule

import (
	"fmt"
	"strings"
)

// validateRule performs full validation of a single rule.
func validateRule(r *Rule) error {
	if r == nil {
		return &ValidationError{
			Field:   "rule",
			Message: "rule cannot be nil",
		}
	}

	if err := ValidateTopicFilter(r.Topic); err != nil {
		return &ValidationError{
			Field:   "topic",
			Message: err.Error(),
		}
	}

	d, ok := NormalizeDirection(string(r.Direction))
	if !ok {
		return &ValidationError{
			Field:   "direction",
			Message: fmt.Sprintf("invalid direction: %s", r.Direction),
		}
	}
	// Canonicalize accepted aliases so the rest of the engine only sees
	// the three direction tokens.
	r.Direction = d

	if r.QoS > 2 {
		return &ValidationError{
			Field:   "qos",
			Message: "QoS must be 0, 1, or 2",
		}
	}

	return nil
}

// ValidateTopicFilter validates a subscription topic filter.
func ValidateTopicFilter(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		// Allow empty segments for leading/trailing slashes
		if segment == "" && i != 0 && i != len(segments)-1 {
			return fmt.Errorf("empty segment not allowed in middle of topic")
		}

		if strings.Contains(segment, "#") {
			if segment != "#" {
				return fmt.Errorf("# wildcard must occupy entire segment")
			}
			if i != len(segments)-1 {
				return fmt.Errorf("# wildcard must be the last segment")
			}
		}

		if strings.Contains(segment, "+") {
			if segment != "+" {
				return fmt.Errorf("+ wildcard must occupy entire segment")
			}
		}
	}

	return nil
}

// ValidateTopicName validates a concrete publish topic name.
func ValidateTopicName(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	if strings.Contains(topic, "+") || strings.Contains(topic, "#") {
		return fmt.Errorf("wildcards not allowed in topic names")
	}

	return nil
}
