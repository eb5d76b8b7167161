package provider

import "github.com/unalkalkan/podcaster/pkg/types"

// Default rates in USD. Providers expose them as options so deployments can
// override them from configuration.
const (
	DocumentIntelligencePer1KPages = 10.0
	ChatInputPer1MTokens           = 2.75
	ChatOutputPer1MTokens          = 11.0
	SpeechHDPer1MCharacters        = 30.0
	OpenAISpeechPer1MCharacters    = 15.0

	OpenAIChatInputPer1MTokens     = 2.5
	OpenAIChatOutputPer1MTokens    = 10.0
	AnthropicChatInputPer1MTokens  = 3.0
	AnthropicChatOutputPer1MTokens = 15.0
)

// Option names used for rates
const (
	OptCostPer1KPages  = "cost_per_1k_pages"
	OptInputCostPer1M  = "input_cost_per_1m"
	OptOutputCostPer1M = "output_cost_per_1m"
	OptCostPer1MChars  = "cost_per_1m_chars"
)

// PageCost prices a document by processed pages. Zero pages cost nothing.
func PageCost(pages int, per1K float64) float64 {
	if pages <= 0 {
		return 0
	}
	return per1K * float64(pages) / 1000
}

// TokenCost prices LLM usage with independent input and output rates
func TokenCost(usage types.UsageMetrics, inputPer1M, outputPer1M float64) float64 {
	return inputPer1M*float64(usage.PromptTokens)/1_000_000 + outputPer1M*float64(usage.CompletionTokens)/1_000_000
}

// CharacterCost prices speech synthesis by message characters
func CharacterCost(chars int, per1M float64) float64 {
	return per1M * float64(chars) / 1_000_000
}
