// Package okhttp OKX v3 REST 的最小客户端，只用于获取服务器时间。
package okhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bitly/go-simplejson"
	jsoniter "github.com/json-iterator/go"
)

const (
	DefaultBaseURL = "https://www.okex.com"
	serverTimePath = "/api/general/v3/time"
)

var ErrInvalidServerTime = errors.New("invalid server time")

// Redefining the standard package
var Json = jsoniter.ConfigCompatibleWithStandardLibrary

func NewJSON(data []byte) (j *simplejson.Json, err error) {
	j, err = simplejson.NewJson(data)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func NewClient(ops ...Option) (*Client, error) {
	opts := &options{
		baseURL: DefaultBaseURL,
		timeout: 5 * time.Second,
	}
	for _, o := range ops {
		o(opts)
	}
	if opts.httpClient == nil {
		opts.httpClient = &http.Client{Timeout: opts.timeout}
	}
	if opts.proxyUrl != "" {
		proxy, err := url.Parse(opts.proxyUrl)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		opts.httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxy),
		}
	}
	return &Client{
		userAgent: "GoTop",
		opts:      opts,
	}, nil
}

// APIError define API error when response status is 4xx or 5xx
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error return error code and message
func (e APIError) Error() string {
	return fmt.Sprintf("<APIError> code=%s, msg=%s", e.Code, e.Message)
}

// IsAPIError check if e is an API error
func IsAPIError(e error) bool {
	var apiErr *APIError
	return errors.As(e, &apiErr)
}

type Client struct {
	opts      *options
	userAgent string
}

func (c *Client) CallAPI(ctx context.Context, method, endpoint string) (data []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		cerr := res.Body.Close()
		// Only overwrite the retured error if the original error was nil and an
		// error occurred while closing the body.
		if err == nil && cerr != nil {
			err = cerr
		}
	}()
	data, err = io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode >= http.StatusBadRequest {
		apiErr := new(APIError)
		if e := Json.Unmarshal(data, apiErr); e != nil {
			return nil, fmt.Errorf("status %d: %s", res.StatusCode, string(data))
		}
		return nil, apiErr
	}
	return data, nil
}

// ServerTime 返回 {"iso": "...", "epoch": "..."} 中的 iso 时间
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	data, err := c.CallAPI(ctx, http.MethodGet, serverTimePath)
	if err != nil {
		return time.Time{}, err
	}
	j, err := NewJSON(data)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidServerTime, err)
	}
	iso, err := j.Get("iso").String()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: missing iso", ErrInvalidServerTime)
	}
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidServerTime, err)
	}
	return t, nil
}
