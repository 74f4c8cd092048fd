package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"tubedigest/fetch"
)

const summaryPrompt = `Eres un especialista en crear resúmenes de videos financieros y económicos.
Escribe un resumen claro y conciso del siguiente video a partir de su título y descripción.
Destaca las ideas principales y cualquier dato concreto que se mencione.
Responde en texto plano, sin encabezados ni listas numeradas.`

type OpenAISummarizer struct {
	client *openai.Client
}

func NewOpenAISummarizer(apiKey string) *OpenAISummarizer {
	return &OpenAISummarizer{
		client: openai.NewClient(apiKey),
	}
}

func (o *OpenAISummarizer) Summarize(ctx context.Context, md *fetch.Metadata, languageHint string) (string, error) {
	prompt := summaryPrompt
	if languageHint != "" && languageHint != "es" {
		prompt = fmt.Sprintf("%s\nResponde en el idioma con código ISO %q.", prompt, languageHint)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Título: %s\n", md.Title)
	if md.Duration != "" {
		fmt.Fprintf(&sb, "Duración: %s\n", md.Duration)
	}
	fmt.Fprintf(&sb, "\nDescripción:\n%s\n", md.Description)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sb.String(),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize video: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize video: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
