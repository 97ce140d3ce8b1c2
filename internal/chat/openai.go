package chat

import (
	"context"
	"fmt"
	"strings"

	"bookdigest/internal/langdetect"
	"bookdigest/internal/render"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	systemPrompt = `You answer questions about a book using only the summary below.

Rules:
- Be concise and concrete; cite page numbers from the summary when available.
- If the summary does not cover the question, say so.
- Plain text with optional **bold**; no headings, no tables.`
)

// OpenAIAssistant calls OpenAI's Responses API with the summary's Markdown
// projection as instructions.
type OpenAIAssistant struct {
	client   openai.Client
	renderer *render.Renderer
}

func NewOpenAIAssistant(apiKey string, renderer *render.Renderer, opts ...option.RequestOption) *OpenAIAssistant {
	return &OpenAIAssistant{
		client:   openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		renderer: renderer,
	}
}

func (a *OpenAIAssistant) Answer(ctx context.Context, conv Conversation) (string, error) {
	if conv.Document == nil {
		return "", ErrNoDocument
	}

	messages, err := Trim(conv.Messages)
	if err != nil {
		return "", err
	}

	instructions, err := Instructions(a.renderer, conv)
	if err != nil {
		return "", err
	}

	input := make(responses.ResponseInputParam, 0, len(messages))
	for _, m := range messages {
		role := responses.EasyInputMessageRoleUser
		if m.Role == RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		input = append(input, responses.ResponseInputItemParamOfMessage(m.Content, role))
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModelGPT5Mini2025_08_07,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(instructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: input,
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		answer := strings.TrimSpace(resp.OutputText())
		if answer == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return answer, nil
	}
}

// Instructions builds the system instructions for a conversation: the rules,
// the reply language and the summary as Markdown.
func Instructions(renderer *render.Renderer, conv Conversation) (string, error) {
	md, err := renderer.Markdown(conv.Document, conv.Title)
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}

	lang := langdetect.DetectDocument(conv.Document)

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n- Reply in ")
	b.WriteString(renderer.Registry().LanguageLabel(string(lang)))
	b.WriteString(" unless the user writes in another language.\n\nSummary:\n\n")
	b.WriteString(md)

	return b.String(), nil
}
