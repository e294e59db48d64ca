package extract

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyTopic is returned when a matcher is built for a blank keyword.
var ErrEmptyTopic = errors.New("topic must be set")

// Matcher recognizes sentences mentioning a topic keyword. Matching is
// case-insensitive, anchored on word boundaries and tolerates the suffixes
// "s", "ing" and "ed".
type Matcher struct {
	topic string
	re    *regexp.Regexp
}

// NewMatcher compiles a matcher for topic.
func NewMatcher(topic string) (*Matcher, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(topic) + `(?:s|ing|ed)?\b`)
	if err != nil {
		return nil, err
	}
	return &Matcher{topic: topic, re: re}, nil
}

// Topic returns the normalized keyword.
func (m *Matcher) Topic() string {
	return m.topic
}

// Match reports whether sentence mentions the topic.
func (m *Matcher) Match(sentence string) bool {
	return m.re.MatchString(sentence)
}

// Filter returns the sentences that mention the topic, in order.
func (m *Matcher) Filter(sentences []string) []string {
	var out []string
	for _, s := range sentences {
		if m.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
