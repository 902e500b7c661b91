// ABOUTME: RSS/Atom/RDF feed parsing using gofeed library
// ABOUTME: Converts gofeed documents to normalized entries with typed content blocks

package parse

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Feed is a normalized parsed document: feed-level display metadata plus
// the entries in document order.
type Feed struct {
	Title   string
	Link    string
	Entries []Entry
}

// Entry is one normalized feed item. Every field is optional upstream.
type Entry struct {
	Title     string
	Link      string
	ID        string
	Published *time.Time
	Blocks    []ContentBlock
}

// ContentBlock is one typed content payload of an entry.
type ContentBlock struct {
	Type  string
	Value string
}

// Description returns the entry's preferred body content: the first HTML
// block if any, otherwise the first block of any type. This is the field
// set the article identity digest is computed from, so the preference
// order must stay stable.
func (e *Entry) Description() string {
	for _, b := range e.Blocks {
		if b.Type == "text/html" {
			return b.Value
		}
	}
	if len(e.Blocks) > 0 {
		return e.Blocks[0].Value
	}
	return ""
}

// Parse parses RSS, Atom, or RDF data and returns a normalized Feed.
func Parse(data []byte) (*Feed, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(data))
	if err != nil {
		return nil, err
	}

	parsed := &Feed{
		Title:   feed.Title,
		Link:    feed.Link,
		Entries: make([]Entry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		entry := Entry{
			Title: strings.TrimSpace(item.Title),
			Link:  item.Link,
			ID:    item.GUID,
		}

		// Use PublishedParsed or fall back to UpdatedParsed
		if item.PublishedParsed != nil {
			entry.Published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			entry.Published = item.UpdatedParsed
		}

		// Full content first, summary second, matching the usual
		// content:encoded over description preference.
		if item.Content != "" {
			entry.Blocks = append(entry.Blocks, ContentBlock{Type: "text/html", Value: strings.TrimSpace(item.Content)})
		}
		if item.Description != "" {
			entry.Blocks = append(entry.Blocks, ContentBlock{Type: "text/html", Value: strings.TrimSpace(item.Description)})
		}

		parsed.Entries = append(parsed.Entries, entry)
	}

	return parsed, nil
}
