package openaicompat

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/resilience"
)

// Config points the client at any OpenAI-compatible API (OpenAI, Groq,
// vLLM, LM Studio). BaseURL must include the version prefix, e.g.
// "https://api.groq.com/openai/v1".
type Config struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32

	Resilience resilience.Config
}

type Client struct {
	api         *openai.Client
	chatModel   string
	embedModel  string
	temperature float32
	executor    *resilience.Executor
}

func New(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		chatModel:   cfg.ChatModel,
		embedModel:  cfg.EmbeddingModel,
		temperature: cfg.Temperature,
		executor:    resilience.NewExecutor(cfg.Resilience),
	}
}

// Generator adapts the client to the text-generation port.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var out string
	err := g.client.executor.Execute(ctx, "chat_completion", func(ctx context.Context) error {
		resp, err := g.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.client.chatModel,
			Temperature: g.client.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}, classifyAPIError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("chat_completion", err)
	}
	return out, nil
}

// Embedder adapts the client to the embedding port.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := e.client.executor.Execute(ctx, "embeddings", func(ctx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.client.embedModel),
			Input: texts,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(texts))
		}
		vectors = make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			vectors[i] = d.Embedding
		}
		return nil
	}, classifyAPIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embeddings", err)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
