// ABOUTME: Feed discovery for finding RSS/Atom feeds from page URLs
// ABOUTME: Tries direct parse, HTML alternate links, then common path probing

package discover

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/harper/gather/internal/parse"
)

// Common feed paths to probe when other discovery methods fail
var commonFeedPaths = []string{
	"/feed.xml",
	"/feed",
	"/rss.xml",
	"/rss",
	"/atom.xml",
	"/atom",
	"/index.xml",
	"/feeds/posts/default",
}

// Errors returned by discovery functions
var (
	ErrNoFeedFound = errors.New("no RSS/Atom feed found at URL")
	ErrInvalidURL  = errors.New("invalid URL")
)

// Feed represents a feed found during discovery.
type Feed struct {
	URL   string // Absolute URL of the feed
	Title string // Feed title (from content or link element)
}

// Discoverer finds feeds starting from an arbitrary page URL.
type Discoverer struct {
	client    *http.Client
	userAgent string
}

// New creates a Discoverer with the given request timeout and user agent.
func New(timeout time.Duration, userAgent string) *Discoverer {
	return &Discoverer{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Discover attempts to find an RSS/Atom feed from the given URL.
// It tries the following strategies in order:
//  1. Parse URL as a direct feed
//  2. Parse URL as HTML and extract <link rel="alternate"> elements
//  3. Probe common feed URL patterns
func (d *Discoverer) Discover(inputURL string) (*Feed, error) {
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	// Strategy 1: direct feed
	feed, body, err := d.tryDirectFeed(inputURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if feed != nil {
		return feed, nil
	}

	// Strategy 2: alternate links in HTML
	for _, candidate := range extractFeedLinks(body, parsedURL) {
		verified, _, verifyErr := d.tryDirectFeed(candidate.URL)
		if verifyErr == nil && verified != nil {
			if verified.Title == "" && candidate.Title != "" {
				verified.Title = candidate.Title
			}
			return verified, nil
		}
	}

	// Strategy 3: common paths
	probeBase := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	for _, path := range commonFeedPaths {
		feed, _, err := d.tryDirectFeed(probeBase.String() + path)
		if err == nil && feed != nil {
			return feed, nil
		}
	}

	return nil, ErrNoFeedFound
}

// tryDirectFeed fetches the URL and attempts to parse it as a feed.
// A non-feed document is not an error; its body comes back for HTML
// scanning instead.
func (d *Discoverer) tryDirectFeed(feedURL string) (*Feed, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, nil, err
	}

	parsed, parseErr := parse.Parse(body)
	if parseErr != nil {
		return nil, body, nil
	}
	return &Feed{URL: feedURL, Title: parsed.Title}, body, nil
}

// extractFeedLinks scans HTML for <link rel="alternate"> feed elements.
func extractFeedLinks(htmlBody []byte, baseURL *url.URL) []Feed {
	doc, err := html.Parse(strings.NewReader(string(htmlBody)))
	if err != nil {
		return nil
	}

	var feeds []Feed
	var findLinks func(*html.Node)
	findLinks = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "link" {
			var rel, linkType, href, title string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "rel":
					rel = attr.Val
				case "type":
					linkType = attr.Val
				case "href":
					href = attr.Val
				case "title":
					title = attr.Val
				}
			}
			if rel == "alternate" && isFeedContentType(linkType) && href != "" {
				if ref, err := url.Parse(href); err == nil {
					feeds = append(feeds, Feed{
						URL:   baseURL.ResolveReference(ref).String(),
						Title: title,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findLinks(c)
		}
	}
	findLinks(doc)
	return feeds
}

// isFeedContentType checks if the content type indicates a feed
func isFeedContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "rss") ||
		strings.Contains(contentType, "atom") ||
		strings.Contains(contentType, "xml")
}
