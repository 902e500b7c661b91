// ABOUTME: OPML parsing and writing for feed subscription import/export
// ABOUTME: Flattens nested outlines to the flat feed list the config uses

package opml

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Feed is one subscription from an OPML document.
type Feed struct {
	URL   string
	Title string
}

type opmlXML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    headXML  `xml:"head"`
	Body    bodyXML  `xml:"body"`
}

type headXML struct {
	Title string `xml:"title"`
}

type bodyXML struct {
	Outlines []outlineXML `xml:"outline"`
}

type outlineXML struct {
	Text     string       `xml:"text,attr"`
	Title    string       `xml:"title,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	XMLURL   string       `xml:"xmlUrl,attr,omitempty"`
	Children []outlineXML `xml:"outline,omitempty"`
}

// Parse reads an OPML document and returns its feeds in document order,
// descending into folder outlines.
func Parse(r io.Reader) ([]Feed, error) {
	var doc opmlXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}

	var feeds []Feed
	var walk func([]outlineXML)
	walk = func(outlines []outlineXML) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				feeds = append(feeds, Feed{URL: o.XMLURL, Title: title})
			}
			walk(o.Children)
		}
	}
	walk(doc.Body.Outlines)
	return feeds, nil
}

// Write serializes feeds as a flat OPML 2.0 document.
func Write(w io.Writer, title string, feeds []Feed) error {
	doc := opmlXML{
		Version: "2.0",
		Head:    headXML{Title: title},
	}
	for _, f := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, outlineXML{
			Text:   f.Title,
			Title:  f.Title,
			Type:   "rss",
			XMLURL: f.URL,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
