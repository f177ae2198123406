package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/digital-twin-core/server/internal/agent/model"
)

//go:embed template/answer_prompt.txt
var answerSystemPrompt string

var sourceLabels = map[model.Category]string{
	model.CategoryLinkedIn: "LinkedIn profile",
	model.CategoryGitHub:   "GitHub projects",
	model.CategoryMedium:   "Medium articles",
}

// RenderAnswerSystem renders the grounded-answer system prompt with the
// retrieved passage batch inlined as context.
func RenderAnswerSystem(ctx context.Context, cfg model.AnswerPromptConfig, passages []model.Passage) (string, error) {
	label := "no source"
	chunks := make([]string, 0, len(passages))
	for _, p := range passages {
		chunks = append(chunks, p.Content)
	}
	if len(passages) > 0 {
		if l, ok := sourceLabels[passages[0].Source]; ok {
			label = l
		}
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(answerSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"SubjectName": cfg.SubjectName,
		"SourceLabel": label,
		"Context":     strings.Join(chunks, "\n\n"),
	})
	if err != nil {
		return "", fmt.Errorf("answer prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("answer prompt render: empty result")
	}
	return msgs[0].Content, nil
}
