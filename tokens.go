package krishi

// EstimateTokens estimates the token count of a message text.
// ASCII runes weigh a quarter token each; anything else (Devanagari, Gurmukhi,
// emoji) is counted as a full token, which keeps Hindi history budgets honest.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
			continue
		}
		weight += 4
	}
	return (weight + 3) / 4
}
