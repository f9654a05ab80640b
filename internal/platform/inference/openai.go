package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const (
	ProviderOpenAI = "openai"

	defaultOpenAIModel = "gpt-4o-mini"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient answers through any OpenAI-compatible chat completions API.
// SDK retries are disabled so a call is a single attempt.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
	enabled bool
	logger  zerolog.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, logger zerolog.Logger, extra ...option.RequestOption) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: cfg.Timeout,
		enabled: strings.TrimSpace(cfg.APIKey) != "",
		logger:  logger.With().Str("component", "inference").Str("provider", ProviderOpenAI).Logger(),
	}
}

func (c *OpenAIClient) Configured() bool { return c.enabled }

func (c *OpenAIClient) Ask(ctx context.Context, message string, pc PatientContext) (reply string, err error) {
	start := time.Now()
	defer func() { observe(ProviderOpenAI, start, err) }()

	if !c.enabled {
		return "", fail(KindUnconfigured, errors.New("no OpenAI API key configured"))
	}
	if message == "" {
		return "", fail(KindBackendError, errors.New("empty message"))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(pc)),
			openai.UserMessage(message),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			c.logger.Warn().Int("status", apiErr.StatusCode).Msg("chat completion rejected")
			return "", fail(KindBackendError, err)
		}
		f := classifyTransport(ctx, err)
		c.logger.Warn().Err(err).Str("kind", string(f.Kind)).Msg("chat completion failed")
		return "", f
	}

	if len(resp.Choices) == 0 {
		return "", fail(KindBackendError, errors.New("no choices in response"))
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fail(KindBackendError, errors.New("backend returned an empty response"))
	}

	c.logger.Debug().
		Str("model", c.model).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Dur("latency", time.Since(start)).
		Msg("chat completion")

	return content, nil
}

func systemPrompt(pc PatientContext) string {
	var b strings.Builder
	b.WriteString("You are an assistant for clinical staff at a dental practice. ")
	b.WriteString("Answer the staff member's question using the patient context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	name := pc.Name
	if name == "" {
		name = "unknown"
	}
	fmt.Fprintf(&b, "Patient: %s\n", name)
	if pc.DOB != nil {
		fmt.Fprintf(&b, "Date of birth: %s\n", pc.DOB.Format("2006-01-02"))
	}
	if pc.MedicalNotes != "" {
		fmt.Fprintf(&b, "Medical notes:\n%s\n", pc.MedicalNotes)
	} else {
		b.WriteString("Medical notes: none recorded\n")
	}
	return b.String()
}
