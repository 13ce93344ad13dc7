package notion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"
)

// Client creates database pages through the Notion REST API.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	BaseURL            string
	Version            string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(options Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(options.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := strings.TrimSpace(options.Version)
	if version == "" {
		version = DefaultVersion
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		version:    version,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type pageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (c *Client) CreatePage(ctx context.Context, creds domain.PublishCredentials, payload domain.PagePayload) (*domain.RemotePage, error) {
	if strings.TrimSpace(creds.Token) == "" {
		return nil, domain.WrapError(domain.ErrConfigurationMissing, "notion create page", errors.New("integration token is empty"))
	}

	body := map[string]any{
		"parent":     map[string]any{"database_id": payload.CollectionID},
		"properties": encodeProperties(payload.Properties),
		"children":   encodeBlocks(payload.Blocks),
	}

	var response pageResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/pages", creds.Token, body, &response, "create page")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "notion.create_page", call, classifyNotionError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		err = wrapTemporaryIfNeeded("notion create page", err)
		if !domain.IsKind(err, domain.ErrExternalService) {
			err = domain.WrapError(domain.ErrExternalService, "notion create page", err)
		}
		return nil, err
	}
	if response.ID == "" {
		return nil, domain.WrapError(domain.ErrExternalService, "notion create page", errors.New("response has no page id"))
	}
	return &domain.RemotePage{ID: response.ID, URL: response.URL}, nil
}
