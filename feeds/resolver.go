// Package feeds finds the feed behind a URL and reads its title and other
// display attributes.
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"ugly/models"
)

// ErrNotAFeed is returned when neither the URL nor any page it links to is a
// parseable feed.
var ErrNotAFeed = errors.New("no feed found")

const maxBodySize = 10 << 20

var feedLinkTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
	"application/json",
	"text/xml",
}

type Resolver interface {
	Resolve(ctx context.Context, rawUrl string) (*models.Feed, error)
}

type HttpResolver struct {
	client          *http.Client
	maxRetries      uint64
	initialInterval time.Duration
	userAgent       string
}

func NewHttpResolver(timeout time.Duration) *HttpResolver {
	return &HttpResolver{
		client:          &http.Client{Timeout: timeout},
		maxRetries:      3,
		initialInterval: 200 * time.Millisecond,
		userAgent:       "ugly-feed-resolver/1.0",
	}
}

// WithRetries sets how often a transient fetch failure is retried.
func (r *HttpResolver) WithRetries(maxRetries uint64, initialInterval time.Duration) *HttpResolver {
	r.maxRetries = maxRetries
	r.initialInterval = initialInterval
	return r
}

// Resolve parses rawUrl as a feed. If it is an HTML page, the alternate feed
// links it advertises are tried in order. The returned feed has no id.
func (r *HttpResolver) Resolve(ctx context.Context, rawUrl string) (*models.Feed, error) {
	pageUrl, err := url.Parse(rawUrl)
	if err != nil || (pageUrl.Scheme != "http" && pageUrl.Scheme != "https") || pageUrl.Host == "" {
		return nil, ErrNotAFeed
	}

	body, err := r.fetch(ctx, pageUrl.String())
	if err != nil {
		return nil, err
	}

	if feed, err := parse(pageUrl.String(), body); err == nil {
		return feed, nil
	}

	for _, link := range alternateLinks(pageUrl, body) {
		log.WithFields(log.Fields{
			"page": pageUrl.String(),
			"feed": link,
		}).Debug("Trying advertised feed link")

		linked, err := r.fetch(ctx, link)
		if err != nil {
			continue
		}
		if feed, err := parse(link, linked); err == nil {
			return feed, nil
		}
	}

	return nil, ErrNotAFeed
}

func (r *HttpResolver) fetch(ctx context.Context, target string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", r.userAgent)

		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = 5 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)); err != nil {
		log.WithFields(log.Fields{
			"url":   target,
			"error": err,
		}).Warn("Fetching feed failed")
		return nil, ErrNotAFeed
	}
	return body, nil
}

func parse(feedUrl string, body []byte) (*models.Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = feedUrl
	}

	return &models.Feed{
		Url:         feedUrl,
		Title:       title,
		Link:        parsed.Link,
		Description: strings.TrimSpace(parsed.Description),
	}, nil
}

func alternateLinks(pageUrl *url.URL, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		kind := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || !lo.Contains(feedLinkTypes, kind) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, pageUrl.ResolveReference(ref).String())
	})
	return links
}
