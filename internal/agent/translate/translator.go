package translate

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	logx "github.com/digital-twin-core/server/pkg/logger"
)

const systemPrompt = `You are a translation assistant. If the user text is already English, return it exactly as given, character for character. Otherwise translate it to English. Output only the resulting English text with no preamble, quotes, or commentary.`

// Translator converts arbitrary text to English.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// ChatModelTranslator runs a small chat model with a fixed translation prompt.
type ChatModelTranslator struct {
	cm einomodel.BaseChatModel
}

func NewChatModelTranslator(cm einomodel.BaseChatModel) *ChatModelTranslator {
	return &ChatModelTranslator{cm: cm}
}

func (t *ChatModelTranslator) Translate(ctx context.Context, text string) (string, error) {
	out, err := t.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		return "", err
	}
	translated := strings.TrimSpace(out.Content)
	if translated == "" {
		return text, nil
	}
	return translated, nil
}

// Normalizer produces the English form of an incoming question. Translation
// failures degrade to a pass-through of the original text so routing and
// retrieval still proceed; the failure is logged, never surfaced.
type Normalizer struct {
	translator Translator
}

func NewNormalizer(t Translator) *Normalizer {
	return &Normalizer{translator: t}
}

func (n *Normalizer) Normalize(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return question
	}
	english, err := n.translator.Translate(ctx, question)
	if err != nil {
		logx.Warn().Err(err).Msg("Translation failed; passing original text through")
		return question
	}
	return strings.TrimSpace(english)
}

var _ Translator = (*ChatModelTranslator)(nil)
