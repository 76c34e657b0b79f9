package rc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	URL      string
	User     string
	Password string
	// Timeout bounds one exchange. Zero means no timeout.
	Timeout time.Duration
	// Retries is the number of transport level retries. Zero disables them.
	Retries int
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64
	Logger    *slog.Logger
}

// Client implements Caller over HTTP.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Caller = (*Client)(nil)

// NewClient creates a Client for the backend listening at opts.URL.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("rc: url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.CheckRetry = retryTransportErrors
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	r := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(opts.URL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "netmount/1.0")
	if opts.Timeout > 0 {
		r.SetTimeout(opts.Timeout)
	}
	if opts.User != "" {
		r.SetBasicAuth(opts.User, opts.Password)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{resty: r, limiter: limiter, logger: logger}, nil
}

// retryTransportErrors retries only exchanges that never produced an answer.
// An error payload from the backend is final.
func retryTransportErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Call posts in to method and decodes the JSON answer into out.
func (c *Client) Call(ctx context.Context, method string, in Params, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rc: %s: %w", method, err)
	}
	if in == nil {
		in = Params{}
	}

	req := c.resty.R().
		SetContext(ctx).
		SetBody(in).
		SetError(&Error{})
	if out != nil {
		req.SetResult(out)
	}

	start := time.Now()
	resp, err := req.Post("/" + strings.TrimPrefix(method, "/"))
	if err != nil {
		c.logger.Debug("rc: call failed",
			slog.String("method", method),
			slog.String("error", err.Error()))
		return fmt.Errorf("rc: %s: %w", method, err)
	}

	c.logger.Debug("rc: call",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode()),
		slog.Duration("took", time.Since(start)))

	if resp.IsError() {
		rcErr, ok := resp.Error().(*Error)
		if !ok || rcErr.Message == "" {
			rcErr = &Error{Message: strings.TrimSpace(resp.String())}
		}
		if rcErr.Status == 0 {
			rcErr.Status = resp.StatusCode()
		}
		if rcErr.Path == "" {
			rcErr.Path = method
		}
		return rcErr
	}
	return nil
}
