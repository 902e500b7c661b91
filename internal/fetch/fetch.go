// ABOUTME: HTTP feed fetcher with conditional requests and outcome classification
// ABOUTME: Maps transport results onto the success/unchanged/moved/gone/error taxonomy

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/harper/gather/internal/parse"
)

// MaxResponseSize bounds feed documents to keep a hostile or broken
// server from exhausting memory.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Request describes one fetch attempt. ETag and LastModified are the
// cache validators from the previous successful fetch; Args are the
// feed's opaque configuration arguments, of which the fetcher consumes
// user, password, proxy, and agent.
type Request struct {
	URL          string
	ETag         string
	LastModified string
	Args         map[string]string
}

// Kind classifies a fetch outcome. The values are mutually exclusive.
type Kind int

const (
	// Success means a parsed document with entries is available.
	Success Kind = iota
	// Unchanged means the server indicated no change since the last fetch.
	Unchanged
	// TransientFailure covers timeouts, transport errors, and unparseable
	// payloads. The attempt counts but no catalog state changes.
	TransientFailure
	// Moved means a permanent redirect; the config should be updated.
	Moved
	// Gone means the server reported the feed no longer exists.
	Gone
	// ClientOrServerError is any other 4xx/5xx response.
	ClientOrServerError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Unchanged:
		return "unchanged"
	case TransientFailure:
		return "transient failure"
	case Moved:
		return "moved"
	case Gone:
		return "gone"
	case ClientOrServerError:
		return "http error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one fetch attempt. Only the fields
// relevant to Kind are set: Feed for Success; ETag/LastModified for
// Success and Unchanged; NewURL for Moved; StatusCode for
// ClientOrServerError; Err for TransientFailure.
type Outcome struct {
	Kind         Kind
	Feed         *parse.Feed
	ETag         string
	LastModified string
	NewURL       string
	StatusCode   int
	Err          error
}

// Fetcher is the external fetch collaborator consumed by the scheduler.
// Tests substitute their own implementation.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) Outcome
}

// HTTPFetcher fetches feeds over HTTP with conditional requests and a
// bounded response size.
type HTTPFetcher struct {
	Timeout   time.Duration
	UserAgent string
}

// New creates an HTTPFetcher with the given socket timeout and default
// user agent.
func New(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{Timeout: timeout, UserAgent: userAgent}
}

// Fetch performs one attempt. It never returns a Go error; every failure
// mode is folded into the outcome taxonomy so callers handle all feeds
// uniformly.
func (h *HTTPFetcher) Fetch(ctx context.Context, req Request) Outcome {
	httpReq, err := h.buildRequest(ctx, req)
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: err}
	}

	client := &http.Client{
		Timeout: h.Timeout,
		// Follow temporary redirects but stop at permanent ones, which
		// must surface as Moved so the config gets fixed.
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if prev := r.Response; prev != nil &&
				(prev.StatusCode == http.StatusMovedPermanently || prev.StatusCode == http.StatusPermanentRedirect) {
				return http.ErrUseLastResponse
			}
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
	if proxy := req.Args["proxy"]; proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return Outcome{Kind: TransientFailure, Err: fmt.Errorf("bad proxy URL: %w", err)}
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Outcome{
			Kind:         Unchanged,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
	case resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusPermanentRedirect:
		return Outcome{Kind: Moved, NewURL: redirectTarget(resp, req.URL)}
	case resp.StatusCode == http.StatusGone:
		return Outcome{Kind: Gone}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Outcome{Kind: ClientOrServerError, StatusCode: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > MaxResponseSize {
		return Outcome{Kind: TransientFailure, Err: fmt.Errorf("response too large (exceeds %d bytes)", MaxResponseSize)}
	}

	parsed, err := parse.Parse(body)
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: fmt.Errorf("failed to parse feed: %w", err)}
	}

	return Outcome{
		Kind:         Success,
		Feed:         parsed,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
}

func (h *HTTPFetcher) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	agent := h.UserAgent
	if a := req.Args["agent"]; a != "" {
		agent = a
	}
	httpReq.Header.Set("User-Agent", agent)

	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.LastModified)
	}
	if user := req.Args["user"]; user != "" {
		httpReq.SetBasicAuth(user, req.Args["password"])
	}
	return httpReq, nil
}

// redirectTarget resolves a redirect Location against the request URL,
// falling back to the raw header value when resolution fails.
func redirectTarget(resp *http.Response, fromURL string) string {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return fromURL
	}
	base, err := url.Parse(fromURL)
	if err != nil {
		return loc
	}
	target, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	return base.ResolveReference(target).String()
}
