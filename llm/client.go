package llm

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-social-bot/types"
	"github.com/saiset-co/sai-social-bot/utils"
)

type State int32

const (
	StateRunning State = iota
	StateStopped
)

// Client generates text through a chat-completions style API. One request per
// call, no retries; the generator layer decides what to do on failure.
type Client struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  types.Logger
	client  *fasthttp.Client
	baseURL string
	model   string
	apiKey  string
	timeout time.Duration
	state   atomic.Value
}

func NewClient(ctx context.Context, logger types.Logger, config *types.GenerationConfig, creds *types.Credentials) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var apiKey string
	if creds != nil {
		apiKey = creds.GenerationAPIKey
	}

	client := &Client{
		ctx:    clientCtx,
		cancel: cancel,
		logger: logger,
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		baseURL: config.BaseURL,
		model:   config.Model,
		apiKey:  apiKey,
		timeout: timeout,
	}

	client.state.Store(StateRunning)

	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends a system/user message pair and returns the model's reply
// with surrounding whitespace stripped.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	if c.state.Load().(State) != StateRunning {
		return "", types.ErrClientNotRunning
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := utils.Marshal(completionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", types.WrapError(err, "failed to marshal completion request")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/chat/completions")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.SetBody(body)

	done := make(chan error, 1)
	go func() {
		done <- c.client.DoTimeout(req, resp, c.timeout)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", types.Errorf(types.ErrGenerationFailed, "request: %v", err)
		}
	case <-ctx.Done():
		return "", types.WrapError(ctx.Err(), "generation canceled")
	case <-c.ctx.Done():
		return "", types.ErrClientNotRunning
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", types.Errorf(types.ErrGenerationFailed, "status %d", resp.StatusCode())
	}

	var completion completionResponse
	if err := utils.Unmarshal(resp.Body(), &completion); err != nil {
		return "", types.Errorf(types.ErrGenerationFailed, "parse response: %v", err)
	}

	if completion.Error != nil {
		return "", types.Errorf(types.ErrGenerationFailed, "api error: %s", completion.Error.Message)
	}

	if len(completion.Choices) == 0 {
		return "", types.Errorf(types.ErrGenerationFailed, "empty choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", types.Errorf(types.ErrGenerationFailed, "empty completion")
	}

	return text, nil
}

func (c *Client) Close() {
	if !c.state.CompareAndSwap(StateRunning, StateStopped) {
		return
	}

	c.cancel()
	c.logger.Debug("Generation client closed")
}

var _ types.GenerationClient = (*Client)(nil)
