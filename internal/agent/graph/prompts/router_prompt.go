package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/digital-twin-core/server/internal/agent/model"
)

//go:embed template/router_prompt.txt
var routerSystemPrompt string

// RenderRouterSystem renders the routing system prompt via the Eino prompt
// component so prompt callbacks fire.
func RenderRouterSystem(ctx context.Context, cfg model.AnswerPromptConfig) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(routerSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"SubjectName": cfg.SubjectName,
	})
	if err != nil {
		return "", fmt.Errorf("router prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("router prompt render: empty result")
	}
	return msgs[0].Content, nil
}
