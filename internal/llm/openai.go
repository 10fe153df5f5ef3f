package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Embedder and Summarizer via the OpenAI API.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	maxSummaryLen  int
}

var (
	_ Embedder   = (*OpenAIClient)(nil)
	_ Summarizer = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a client. maxSummaryLen is passed to the model as
// a soft limit; the pipeline still truncates the result.
func NewOpenAIClient(apiKey, chatModel, embeddingModel string, maxSummaryLen int) *OpenAIClient {
	return &OpenAIClient{
		client:         openai.NewClient(apiKey),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		maxSummaryLen:  maxSummaryLen,
	}
}

// Embed returns the embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	}
	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

// Summarize condenses the comment texts into one short annotation body.
func (c *OpenAIClient) Summarize(ctx context.Context, texts []string) (string, error) {
	var sb strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
	}

	prompt := fmt.Sprintf(
		"Several readers left replies making a similar point about a post. "+
			"Write one neutral sentence (at most %d characters) that summarizes the shared point. "+
			"Do not address anyone, do not use hashtags.\n\nReplies:\n%s",
		c.maxSummaryLen, sb.String(),
	)

	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
