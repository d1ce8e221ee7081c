// Package fallback produces canned advisory replies when the backend stream
// is unavailable.
//
// Classification is a plain ordered rule table: the input is lower-cased and
// each topic's keywords are tested as substrings, first topic wins. Keeping it
// this simple keeps replies reproducible for the same input.
package fallback

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Topic intents, reported in the reply metadata.
const (
	IntentCrop     = "crop_advice"
	IntentLoan     = "loan_help"
	IntentMarket   = "market_prices"
	IntentRisk     = "risk_alert"
	IntentCalendar = "crop_calendar"
	IntentScheme   = "government_schemes"
	IntentGeneral  = "general"
)

// Topic is one row of the keyword table.
type Topic struct {
	Intent   string
	Keywords []string

	// Replies maps a language code to the canned text. The "hi" entry is
	// used when the requested language has none.
	Replies     map[string]string
	Suggestions []string
}

// Reply returns the canned text for lang.
func (t Topic) Reply(lang string) string {
	if r, ok := t.Replies[lang]; ok {
		return r
	}
	return t.Replies["hi"]
}

// Classifier matches user text against an ordered topic table.
type Classifier struct {
	topics  []Topic
	generic Topic
}

// NewClassifier builds a classifier. Keywords are lower-cased once here.
func NewClassifier(topics []Topic, generic Topic) *Classifier {
	c := &Classifier{generic: generic}
	for _, t := range topics {
		kw := make([]string, len(t.Keywords))
		for i, k := range t.Keywords {
			kw[i] = strings.ToLower(k)
		}
		t.Keywords = kw
		c.topics = append(c.topics, t)
	}
	return c
}

// Default returns the classifier with the built-in advisory topics.
func Default() *Classifier {
	return NewClassifier(DefaultTopics(), GenericTopic())
}

// Classify returns the first topic with a keyword contained in text, or the
// generic topic.
func (c *Classifier) Classify(text string) Topic {
	lower := strings.ToLower(text)
	for _, t := range c.topics {
		for _, k := range t.Keywords {
			if k != "" && strings.Contains(lower, k) {
				return t
			}
		}
	}
	return c.generic
}

// Latency is the simulated processing delay range for canned replies.
type Latency struct {
	Min time.Duration
	Max time.Duration
}

// DefaultLatency is the range used when none is configured.
var DefaultLatency = Latency{Min: time.Second, Max: 3 * time.Second}

// Pick draws a delay uniformly from [Min, Max] using intn, which must return
// a value in [0, n). A nil intn uses math/rand/v2.
func (l Latency) Pick(intn func(n int64) int64) time.Duration {
	if l.Max <= l.Min {
		return l.Min
	}
	if intn == nil {
		intn = rand.Int64N
	}
	span := int64(l.Max-l.Min) + 1
	return l.Min + time.Duration(intn(span))
}
