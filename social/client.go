package social

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
	"github.com/saiset-co/sai-social-bot/utils"
)

type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

// Client talks to the social network's v2-style REST API. It performs a
// single attempt per call and maps failures onto *types.APIError; rate-limit
// and duplicate-content retry policies live with the fetcher and publisher.
type Client struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  types.Logger
	client  *fasthttp.Client
	baseURL string
	token   string
	timeout time.Duration
	breaker *CircuitBreaker
	state   atomic.Value
}

func NewClient(ctx context.Context, logger types.Logger, config *types.SocialConfig, creds *types.Credentials) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &fasthttp.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	var token string
	if creds != nil {
		token = creds.SocialBearerToken
	}

	client := &Client{
		ctx:     clientCtx,
		cancel:  cancel,
		logger:  logger,
		client:  httpClient,
		baseURL: config.BaseURL,
		token:   token,
		timeout: timeout,
		breaker: NewCircuitBreaker(config.CircuitBreaker, logger, "social"),
	}

	client.state.Store(StateRunning)

	return client
}

type timelineResponse struct {
	Data []types.Post `json:"data"`
}

type publishRequest struct {
	Text  string        `json:"text"`
	Reply *replyOptions `json:"reply,omitempty"`
}

type replyOptions struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type publishResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// FetchTimeline returns posts for userID strictly newer than opts.SinceID,
// newest first, along with the rate-limit state the API reported.
func (c *Client) FetchTimeline(ctx context.Context, userID string, opts types.TimelineOptions) ([]types.Post, *types.RateLimitInfo, error) {
	if !c.IsRunning() {
		return nil, nil, types.ErrClientNotRunning
	}

	uri := fmt.Sprintf("%s/2/users/%s/tweets?max_results=%d", c.baseURL, userID, opts.MaxResults)
	if opts.SinceID != "" {
		uri += "&since_id=" + opts.SinceID
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	c.setCommonHeaders(req)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, nil, err
	}

	rateLimit := parseRateLimitHeaders(resp)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, rateLimit, c.apiError(resp, rateLimit)
	}

	var timeline timelineResponse
	if err := utils.Unmarshal(resp.Body(), &timeline); err != nil {
		return nil, rateLimit, types.WrapError(types.ErrClientResponseInvalid, err.Error())
	}

	return timeline.Data, rateLimit, nil
}

// Publish posts text, optionally as a reply to inReplyTo, and returns the
// new post's id.
func (c *Client) Publish(ctx context.Context, text, inReplyTo string) (string, error) {
	if !c.IsRunning() {
		return "", types.ErrClientNotRunning
	}

	payload := publishRequest{Text: text}
	if inReplyTo != "" {
		payload.Reply = &replyOptions{InReplyToTweetID: inReplyTo}
	}

	body, err := utils.Marshal(payload)
	if err != nil {
		return "", types.WrapError(err, "failed to marshal publish request")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/2/tweets")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)
	c.setCommonHeaders(req)

	if err := c.do(ctx, req, resp); err != nil {
		return "", err
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", c.apiError(resp, parseRateLimitHeaders(resp))
	}

	var published publishResponse
	if err := utils.Unmarshal(resp.Body(), &published); err != nil {
		return "", types.WrapError(types.ErrClientResponseInvalid, err.Error())
	}

	return published.Data.ID, nil
}

func (c *Client) Close() {
	if !c.transitionState(StateRunning, StateStopping) {
		return
	}

	defer func() {
		c.setState(StateStopped)
		c.cancel()
	}()

	if err := c.breaker.Stop(); err != nil && !types.IsError(err, types.ErrServiceIsNotRunning) {
		c.logger.Warn("Failed to stop circuit breaker", zap.Error(err))
	}

	c.logger.Debug("Social client closed")
}

func (c *Client) IsRunning() bool {
	return c.getState() == StateRunning
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if !c.breaker.CanExecute() {
		return types.ErrCircuitBreakerOpen
	}

	done := make(chan error, 1)
	go func() {
		done <- c.client.DoTimeout(req, resp, c.timeout)
	}()

	select {
	case err := <-done:
		if err != nil {
			c.breaker.RecordFailure()
			return types.Errorf(types.ErrClientRequestFailed, "%v", err)
		}
	case <-ctx.Done():
		return types.WrapError(ctx.Err(), "social call canceled")
	case <-c.ctx.Done():
		return types.ErrClientNotRunning
	}

	if IsBreakerFailure(resp.StatusCode()) {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}

	return nil
}

func (c *Client) setCommonHeaders(req *fasthttp.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.NewString())
}

func (c *Client) apiError(resp *fasthttp.Response, rateLimit *types.RateLimitInfo) error {
	apiErr := &types.APIError{
		StatusCode: resp.StatusCode(),
		RateLimit:  rateLimit,
	}

	var parsed errorResponse
	if err := utils.Unmarshal(resp.Body(), &parsed); err == nil {
		apiErr.Message = parsed.Detail
		if apiErr.Message == "" {
			apiErr.Message = parsed.Title
		}
	}

	return apiErr
}

func parseRateLimitHeaders(resp *fasthttp.Response) *types.RateLimitInfo {
	reset := string(resp.Header.Peek("x-rate-limit-reset"))
	if reset == "" {
		return nil
	}

	info := &types.RateLimitInfo{}

	if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
		info.Reset = time.Unix(epoch, 0)
	}
	if limit, err := strconv.Atoi(string(resp.Header.Peek("x-rate-limit-limit"))); err == nil {
		info.Limit = limit
	}
	if remaining, err := strconv.Atoi(string(resp.Header.Peek("x-rate-limit-remaining"))); err == nil {
		info.Remaining = remaining
	}

	return info
}

func (c *Client) getState() State {
	return c.state.Load().(State)
}

func (c *Client) setState(newState State) bool {
	currentState := c.getState()
	return c.state.CompareAndSwap(currentState, newState)
}

func (c *Client) transitionState(from, to State) bool {
	return c.state.CompareAndSwap(from, to)
}

var _ types.SocialClient = (*Client)(nil)
