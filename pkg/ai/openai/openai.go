package openai

import (
	"sync"

	"github.com/tarifflab/hsnatlas/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// Client implements the ai.Client interface against OpenAI-compatible
// endpoints. Chat and embedding requests may target different endpoints,
// which allows mixing a hosted chat model with a local embedding server.
type Client struct {
	embeddingModel string
	chatModel      string

	chatURL string

	timeoutMin int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	chatClient      *openai.Client
	embeddingClient *openai.Client
}

// ClientParams defines the configuration for creating a new Client.
// Empty URLs fall back to the official OpenAI endpoint.
type ClientParams struct {
	EmbeddingModel string
	ChatModel      string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	TimeoutMin            int
	MaxConcurrentRequests int64
}

// NewClient creates an OpenAI-backed AI client configured with the
// provided parameters.
func NewClient(params ClientParams) *Client {
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 15
	}
	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}

	return &Client{
		embeddingModel:  params.EmbeddingModel,
		chatModel:       params.ChatModel,
		chatURL:         params.ChatURL,
		timeoutMin:      timeoutMin,
		reqLock:         semaphore.NewWeighted(maxReq),
		chatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		embeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

// GetMetrics returns the accumulated token usage and timing metrics.
func (c *Client) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics zeroes the accumulated metrics, typically between jobs.
func (c *Client) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

func (c *Client) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}
