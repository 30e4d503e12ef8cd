package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"ugly/models"
)

const (
	defaultHttpTimeout        = 60 * time.Second
	defaultHttpConnectTimeout = 5 * time.Second
	defaultHttpTlsTimeout     = 5 * time.Second
)

func defaultClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHttpTimeout
	}
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

type Callback[R any] interface {
	Result(result R, err error)
}

type simpleCallback[R any] struct {
	callback func(result R, err error)
}

func NewCallback[R any](callback func(result R, err error)) Callback[R] {
	return &simpleCallback[R]{
		callback: callback,
	}
}

func NewNoopCallback[R any]() Callback[R] {
	return &simpleCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (c *simpleCallback[R]) Result(result R, err error) {
	c.callback(result, err)
}

type (
	FeedsCallback       Callback[[]*models.Feed]
	SubscribeCallback   Callback[*models.SubscribeResponse]
	UnsubscribeCallback Callback[*models.MessageResponse]
)

// Client talks to the feed subscription service. The asynchronous methods
// return immediately and report through the callback from another goroutine.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	baseUrl    string
	httpClient *http.Client
}

func NewClient(baseUrl string, timeout time.Duration) *Client {
	return NewClientWithContext(context.Background(), baseUrl, timeout)
}

func NewClientWithContext(ctx context.Context, baseUrl string, timeout time.Duration) *Client {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &Client{
		ctx:        cancelCtx,
		cancel:     cancel,
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		httpClient: defaultClient(timeout),
	}
}

// Close aborts requests that are still in flight.
func (c *Client) Close() {
	c.cancel()
}

func (c *Client) ListFeeds(callback FeedsCallback) {
	go c.ListFeedsSync(callback)
}

func (c *Client) ListFeedsSync(callback FeedsCallback) ([]*models.Feed, error) {
	response := &models.FeedsResponse{}
	if err := c.do(http.MethodGet, "/api/feeds", nil, response); err != nil {
		callback.Result(nil, err)
		return nil, err
	}
	if response.Feeds == nil {
		err := &ProtocolError{Err: errors.New("response has no feeds list")}
		callback.Result(nil, err)
		return nil, err
	}

	seen := map[int64]bool{}
	for i, feed := range response.Feeds {
		if feed == nil || feed.Id == 0 {
			err := &ProtocolError{Err: fmt.Errorf("feed %d has no id", i)}
			callback.Result(nil, err)
			return nil, err
		}
		if seen[feed.Id] {
			err := &ProtocolError{Err: fmt.Errorf("duplicate feed id %d", feed.Id)}
			callback.Result(nil, err)
			return nil, err
		}
		seen[feed.Id] = true
	}

	callback.Result(response.Feeds, nil)
	return response.Feeds, nil
}

func (c *Client) Subscribe(feedUrl string, callback SubscribeCallback) {
	go c.SubscribeSync(feedUrl, callback)
}

func (c *Client) SubscribeSync(feedUrl string, callback SubscribeCallback) (*models.SubscribeResponse, error) {
	form := url.Values{}
	form.Set("url", feedUrl)

	response := &models.SubscribeResponse{}
	if err := c.do(http.MethodPost, "/api/subscribe", form, response); err != nil {
		callback.Result(nil, err)
		return nil, err
	}
	if response.Feed == nil || response.Feed.Id == 0 {
		err := &ProtocolError{Err: errors.New("response has no feed")}
		callback.Result(nil, err)
		return nil, err
	}

	callback.Result(response, nil)
	return response, nil
}

func (c *Client) Unsubscribe(feedId int64, callback UnsubscribeCallback) {
	go c.UnsubscribeSync(feedId, callback)
}

func (c *Client) UnsubscribeSync(feedId int64, callback UnsubscribeCallback) (*models.MessageResponse, error) {
	response := &models.MessageResponse{}
	if err := c.do(http.MethodPost, fmt.Sprintf("/api/unsubscribe/%d", feedId), nil, response); err != nil {
		callback.Result(nil, err)
		return nil, err
	}

	callback.Result(response, nil)
	return response, nil
}

// do issues one request and decodes a 2xx body into result. Failures are
// always one of NetworkError, ProtocolError or ApplicationError.
func (c *Client) do(method string, path string, form url.Values, result any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(c.ctx, method, c.baseUrl+path, body)
	if err != nil {
		return &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	r, err := c.httpClient.Do(req)
	if err != nil {
		log.WithFields(log.Fields{
			"method": method,
			"path":   path,
			"error":  err,
		}).Warn("Request failed")
		return &NetworkError{Err: err}
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	log.WithFields(log.Fields{
		"method":  method,
		"path":    path,
		"status":  r.StatusCode,
		"latency": time.Since(start),
	}).Debug("Request")

	if r.StatusCode < 200 || r.StatusCode > 299 {
		// A broken failure body still yields an application error, just without a message
		message, _ := ParseMessage(responseBodyBytes)
		return &ApplicationError{Status: r.StatusCode, Message: message}
	}

	if err != nil {
		return &NetworkError{Err: err}
	}

	if err := json.Unmarshal(responseBodyBytes, result); err != nil {
		return &ProtocolError{Err: err}
	}

	return nil
}
