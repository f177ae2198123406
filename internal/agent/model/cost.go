package model

import (
	"os"

	"github.com/cloudwego/eino/schema"
)

// Pricing is USD per 1M text tokens, standard tier.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// pricingTable covers the chat models the pipeline runs (router, answer,
// speech, translator). Embedding responses carry no token usage, so
// retrieval is not metered here.
var pricingTable = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// CostEnabled reports whether per-node usage cost is computed and logged.
// On unless COST_ACCOUNTING=off.
func CostEnabled() bool {
	return os.Getenv("COST_ACCOUNTING") != "off"
}

// ResolvePricing returns the pricing for a model name. Unknown models price
// at zero so a renamed model never fabricates cost figures.
func ResolvePricing(model string) Pricing {
	return pricingTable[model]
}

// ComputeCost converts one completion's token usage to USD.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
