package analysis

// SystemPrompt lists the biases and fallacies the model is asked to look for.
const SystemPrompt = `Analyze the following text for cognitive biases and logical fallacies.
Consider common biases such as:
- Confirmation bias
- Anchoring bias
- Availability heuristic
- Bandwagon effect
- False causality
- Ad hominem arguments
- Straw man arguments

Provide a concise analysis highlighting any identified biases and explain why they are present.`

const (
	Temperature = 0.7
	MaxTokens   = 500
)
