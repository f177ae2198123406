package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/speech_prompt.txt
var speechSystemPrompt string

// RenderSpeechSystem renders the static speech-optimization system prompt.
// Routed through the Eino prompt component to keep callback emission uniform
// with the other prompts.
func RenderSpeechSystem(ctx context.Context) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(speechSystemPrompt)},
	})
	if err != nil {
		return "", fmt.Errorf("speech prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("speech prompt render: empty result")
	}
	return msgs[0].Content, nil
}
