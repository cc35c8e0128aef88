package ai

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const (
	DefaultAnthropicModel = "claude-haiku-4-5-20251001"
	defaultMaxTokens      = 1024
	jsonInstruction       = "Odpowiedz wyłącznie jednym obiektem JSON, bez dodatkowego tekstu."
)

// AnthropicOracle implements Oracle on the Messages API.
type AnthropicOracle struct {
	client sdk.Client
	model  string
}

func NewAnthropicOracle(apiKey, model string) *AnthropicOracle {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicOracle{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete has no native JSON mode, so JSONMode appends an instruction to the system
// prompt and the reply is trimmed to its first JSON object.
func (a *AnthropicOracle) Complete(ctx context.Context, system string, messages []Message, opts Options) (string, error) {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if opts.JSONMode {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  toSDKMessages(messages),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if opts.JSONMode {
		if obj, ok := ExtractJSONObject(text); ok {
			return obj, nil
		}
	}
	return text, nil
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(block))
		default:
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}
