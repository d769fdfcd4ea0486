package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Provider is the interface for text-generation providers.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, logger *zap.Logger) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	o.logger.Warn("Ollama model not found", zap.String("model", o.Model))
	return false
}

// Generate sends a system instruction and prompt to Ollama and returns the reply.
func (o *OllamaProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":    o.Model,
		"messages": messages,
		"stream":   false,
		"format":   "json",
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.2,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

// OpenAIProvider wraps the OpenAI chat completion client.
type OpenAIProvider struct {
	Model  string
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates an OpenAI provider using the key found in apiKeyEnv.
// The returned provider reports IsConfigured false when the key is unset.
func NewOpenAIProvider(model, apiKeyEnv string, logger *zap.Logger) *OpenAIProvider {
	p := &OpenAIProvider{Model: model, logger: logger}
	if key := os.Getenv(apiKeyEnv); key != "" {
		client := openai.NewClient(option.WithAPIKey(key), option.WithRequestTimeout(120*time.Second))
		p.client = &client
	}
	return p
}

func (o *OpenAIProvider) Name() string { return "openai" }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.client != nil
}

// Generate sends a system instruction and prompt to OpenAI and returns the reply.
func (o *OpenAIProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if o.client == nil {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.Model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	o.logger.Debug("OpenAI response received",
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// GeminiProvider wraps the Gemini client.
type GeminiProvider struct {
	Model  string
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini provider using the key found in apiKeyEnv.
func NewGeminiProvider(ctx context.Context, model, apiKeyEnv string, logger *zap.Logger) (*GeminiProvider, error) {
	p := &GeminiProvider{Model: model, logger: logger}
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return p, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

// IsConfigured checks if a client could be built.
func (g *GeminiProvider) IsConfigured() bool {
	return g.client != nil
}

// Generate sends a system instruction and prompt to Gemini in JSON mode.
func (g *GeminiProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:      &temp,
		MaxOutputTokens:  int32(maxTokens),
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.Model, []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}},
	}, config)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	text := extractGeminiText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return text, nil
}

func extractGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var texts []string
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "")
}

// Options selects and configures a provider.
type Options struct {
	Provider        string
	Model           string
	OllamaURL       string
	OpenAIModel     string
	APIKeyEnv       string
	GeminiModel     string
	GeminiAPIKeyEnv string
}

// CreateProvider returns the configured provider, falling back through
// ollama, openai and gemini. It returns nil when none is usable.
func CreateProvider(ctx context.Context, opts Options, logger *zap.Logger) Provider {
	order := []string{"ollama", "openai", "gemini"}
	preferred := strings.ToLower(strings.TrimSpace(opts.Provider))
	candidates := []string{preferred}
	for _, name := range order {
		if name != preferred {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		var p Provider
		switch name {
		case "ollama":
			if opts.OllamaURL == "" || opts.Model == "" {
				continue
			}
			p = NewOllamaProvider(opts.Model, opts.OllamaURL, logger)
		case "openai":
			if opts.APIKeyEnv == "" {
				continue
			}
			p = NewOpenAIProvider(opts.OpenAIModel, opts.APIKeyEnv, logger)
		case "gemini":
			if opts.GeminiAPIKeyEnv == "" {
				continue
			}
			gp, err := NewGeminiProvider(ctx, opts.GeminiModel, opts.GeminiAPIKeyEnv, logger)
			if err != nil {
				logger.Warn("Gemini provider unavailable", zap.Error(err))
				continue
			}
			p = gp
		default:
			continue
		}
		if p.IsConfigured() {
			logger.Info("Using LLM provider", zap.String("provider", p.Name()))
			return p
		}
		if name == preferred {
			logger.Warn("Preferred LLM provider not available, trying fallbacks", zap.String("provider", name))
		}
	}

	logger.Warn("No LLM provider available; reports will use rule-based classification only")
	return nil
}
