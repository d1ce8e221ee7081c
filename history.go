package krishi

// TruncateHistory keeps the most recent messages that fit both limits.
// The message limit is applied first, then the oldest messages are dropped
// until the estimated token total is within tokenLimit. A non-positive limit
// disables that bound. The input slice is not modified.
func TruncateHistory(history []Message, tokenLimit, messageLimit int) []Message {
	if len(history) == 0 {
		return history
	}

	if messageLimit > 0 && len(history) > messageLimit {
		history = history[len(history)-messageLimit:]
	}

	if tokenLimit <= 0 {
		return append([]Message(nil), history...)
	}

	total := 0
	for _, msg := range history {
		total += EstimateTokens(msg.Text)
	}

	for total > tokenLimit && len(history) > 0 {
		total -= EstimateTokens(history[0].Text)
		history = history[1:]
	}

	return append([]Message(nil), history...)
}
