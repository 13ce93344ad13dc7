package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
	"github.com/kirillkom/document-enricher/internal/infrastructure/resilience"
)

const defaultCallTimeout = 120 * time.Second

// Client talks to an Ollama-compatible /api/generate endpoint. The endpoint,
// model name and token come from the credentials passed with every call, so
// one client serves every configured model.
type Client struct {
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(executor *resilience.Executor) *Client {
	return NewWithHTTPClient(&http.Client{}, executor)
}

func NewWithHTTPClient(httpClient *http.Client, executor *resilience.Executor) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		executor:   executor,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) Generate(
	ctx context.Context,
	creds domain.ModelCredentials,
	req ports.GenerationRequest,
) (ports.GenerationResult, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(creds.Endpoint), "/")
	if baseURL == "" {
		return ports.GenerationResult{}, domain.WrapError(domain.ErrConfigurationMissing, "ollama generate", errors.New("model endpoint is empty"))
	}

	timeout := creds.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := generateRequest{
		Model:  creds.Name,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  req.MaxOutputTokens,
			Temperature: req.Temperature,
		},
	}

	var response generateResponse
	call := func(ctx context.Context) error {
		var err error
		response, err = c.send(ctx, baseURL, creds.Token, payload)
		return err
	}

	// One breaker per endpoint: a failing model host must not trip calls
	// routed to a healthy one.
	var err error
	if c.executor != nil {
		err = c.executor.Execute(callCtx, "ollama.generate "+baseURL, call, classifyGenerateError)
	} else {
		err = call(callCtx)
	}
	if err != nil {
		return ports.GenerationResult{}, generateError(err)
	}

	text := strings.TrimSpace(response.Response)
	if text == "" {
		return ports.GenerationResult{}, domain.WrapError(domain.ErrExternalService, "ollama generate", fmt.Errorf("empty response from model %q", creds.Name))
	}
	return ports.GenerationResult{
		Text:       text,
		TokensUsed: response.PromptEvalCount + response.EvalCount,
	}, nil
}
