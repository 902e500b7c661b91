// ABOUTME: Rendering pipeline producing the bounded, ordered output document
// ABOUTME: Stable sort, display dedup, day/time grouping, and template substitution

package render

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harper/gather/internal/config"
	"github.com/harper/gather/internal/content"
	"github.com/harper/gather/internal/models"
	"github.com/harper/gather/internal/state"
)

// Sanitizer is the HTML sanitization collaborator the pipeline consumes.
type Sanitizer interface {
	Sanitize(raw string, baseURL string, inline bool) string
}

// Stats summarizes one render for the CLI.
type Stats struct {
	Shown      int
	Duplicates int
}

// Renderer turns the catalog into the output document. It is a pure
// function of (state, configuration, now); it mutates nothing.
type Renderer struct {
	cfg    *config.Config
	san    Sanitizer
	loader *Loader
}

// New creates a Renderer.
func New(cfg *config.Config, san Sanitizer, loader *Loader) *Renderer {
	return &Renderer{cfg: cfg, san: san, loader: loader}
}

// displayArticle pairs an article with its chosen display date.
type displayArticle struct {
	article *models.Article
	date    time.Time
}

// WriteTo renders the document to w.
func (r *Renderer) WriteTo(w io.Writer, st *state.State, now time.Time) (Stats, error) {
	pageTpl, err := r.loader.Load(r.cfg.Template, DefaultPageTemplate)
	if err != nil {
		return Stats{}, err
	}
	itemTpl, err := r.loader.Load(r.cfg.ItemTemplate, DefaultItemTemplate)
	if err != nil {
		return Stats{}, err
	}

	shown, stats := r.selectArticles(st, now)

	var items bytes.Buffer
	dw := NewDayWriter(&items, r.cfg.DayFormat, r.cfg.TimeFormat, r.cfg.DaySections, r.cfg.TimeSections)
	for _, da := range shown {
		dw.Time(da.date)
		items.WriteString(Expand(itemTpl, r.itemValues(st, da)))
	}
	dw.Close()

	values := map[string]string{
		"items":   items.String(),
		"version": config.Version,
	}
	if r.cfg.ShowFeeds {
		values["feeds"] = r.feedsTable(st)
	}
	if r.cfg.UseRefresh {
		if secs := refreshSeconds(st); secs > 0 {
			values["refresh"] = fmt.Sprintf("%d", secs)
		}
	}

	if _, err := io.WriteString(w, Expand(pageTpl, values)); err != nil {
		return stats, fmt.Errorf("failed to write output: %w", err)
	}
	return stats, nil
}

// WriteFile renders to the output file using the same temp-then-rename
// discipline as the state file, so readers never see a partial document.
func (r *Renderer) WriteFile(path string, st *state.State, now time.Time) (Stats, error) {
	tmp := fmt.Sprintf("%s.new-%s", path, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Stats{}, fmt.Errorf("cannot create output file: %w", err)
	}
	stats, err := r.WriteTo(f, st, now)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return stats, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return stats, fmt.Errorf("cannot write output file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return stats, fmt.Errorf("cannot replace output file %s: %w", path, err)
	}
	return stats, nil
}

// selectArticles orders, dedups, and bounds the catalog for display.
func (r *Renderer) selectArticles(st *state.State, now time.Time) ([]displayArticle, Stats) {
	all := make([]displayArticle, 0, len(st.Articles))
	for _, a := range st.Articles {
		date := a.FirstSeen
		if r.cfg.SortByFeedDate && a.Content.Published != nil {
			date = *a.Content.Published
		}
		all = append(all, displayArticle{article: a, date: date})
	}

	// Total order: date descending, then feed URL, sequence, and identity
	// ascending. Reproducible for identical inputs.
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.date.Equal(b.date) {
			return a.date.After(b.date)
		}
		if a.article.Feed != b.article.Feed {
			return a.article.Feed < b.article.Feed
		}
		if a.article.Sequence != b.article.Sequence {
			return a.article.Sequence < b.article.Sequence
		}
		return a.article.Hash < b.article.Hash
	})

	var stats Stats
	shown := make([]displayArticle, 0, len(all))
	seen := make(map[string]map[string]bool, len(r.cfg.HideDuplicates))
	for _, key := range r.cfg.HideDuplicates {
		seen[key] = make(map[string]bool)
	}

	for _, da := range all {
		if r.isDuplicate(st, da.article, seen) {
			stats.Duplicates++
			continue
		}
		if r.cfg.MaxAge > 0 && now.Sub(da.date) > r.cfg.MaxAge {
			continue
		}
		shown = append(shown, da)
		if r.cfg.MaxArticles > 0 && len(shown) >= r.cfg.MaxArticles {
			break
		}
	}
	stats.Shown = len(shown)
	return shown, stats
}

// isDuplicate applies the display dedup policy: the first configured key
// for which the article has a non-empty value is the only key consulted,
// with no fallback to later keys. Feeds with allowduplicates opt out
// entirely.
func (r *Renderer) isDuplicate(st *state.State, a *models.Article, seen map[string]map[string]bool) bool {
	if feed, ok := st.Feeds[a.Feed]; ok && feed.BoolArg("allowduplicates") {
		return false
	}
	for _, key := range r.cfg.HideDuplicates {
		var value string
		switch key {
		case "id":
			value = a.Content.ID
		case "link":
			value = a.Content.Link
		}
		if value == "" {
			continue
		}
		if seen[key][value] {
			return true
		}
		seen[key][value] = true
		return false
	}
	return false
}

// itemValues builds the substitution values for one article.
func (r *Renderer) itemValues(st *state.State, da displayArticle) map[string]string {
	a := da.article
	feed := st.Feeds[a.Feed]
	baseURL := a.Feed
	feedName := a.Feed
	feedLink := ""
	if feed != nil {
		feedName = feed.DisplayName()
		feedLink = feed.Link
		if feedLink != "" {
			baseURL = feedLink
		}
	}

	title := r.san.Sanitize(a.Content.Title, baseURL, true)
	link := content.ResolveLink(a.Content.Link, baseURL)
	if title == "" {
		// Untitled items still need clickable text.
		if link != "" {
			title = "Link"
		} else {
			title = "Article"
		}
	}

	values := map[string]string{
		"title":       title,
		"item_link":   html.EscapeString(link),
		"description": r.san.Sanitize(a.Content.Description, baseURL, false),
		"date":        formatTime(da.date, r.cfg),
		"hash":        a.Hash,
		"feed_url":    html.EscapeString(a.Feed),
		"feed_title":  r.feedAnchor(feed, feedName),
		"feed_link":   html.EscapeString(feedLink),
	}
	return values
}

// feedAnchor renders a feed's display name, linked to its site when the
// feed metadata carries one.
func (r *Renderer) feedAnchor(feed *models.Feed, name string) string {
	safe := r.san.Sanitize(name, "", true)
	if safe == "" {
		safe = html.EscapeString(name)
	}
	if feed != nil && feed.Link != "" {
		return fmt.Sprintf("<a href=%q>%s</a>", feed.Link, safe)
	}
	return safe
}

// feedsTable renders the per-feed status table, sorted by display name.
func (r *Renderer) feedsTable(st *state.State) string {
	feeds := make([]*models.Feed, 0, len(st.Feeds))
	for _, f := range st.Feeds {
		feeds = append(feeds, f)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return strings.ToLower(feeds[i].DisplayName()) < strings.ToLower(feeds[j].DisplayName())
	})

	var b strings.Builder
	b.WriteString("<table id=\"feeds\">\n<tr id=\"feedsheader\">\n")
	b.WriteString("<th>Feed</th><th>RSS</th><th>Last update</th><th>Next update</th>\n</tr>\n")
	for _, f := range feeds {
		b.WriteString("<tr class=\"feedsrow\">\n")
		fmt.Fprintf(&b, "<td>%s</td>\n", r.feedAnchor(f, f.DisplayName()))
		fmt.Fprintf(&b, "<td><a class=\"xmlbutton\" href=%q>XML</a></td>\n", f.URL)
		fmt.Fprintf(&b, "<td>%s</td>\n", formatTime(f.LastUpdate, r.cfg))
		fmt.Fprintf(&b, "<td>%s</td>\n", formatTime(f.LastUpdate.Add(f.Period), r.cfg))
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
	return b.String()
}

// refreshSeconds returns the meta-refresh interval: the smallest feed
// period, or 0 when there are no feeds.
func refreshSeconds(st *state.State) int {
	var min time.Duration
	for _, f := range st.Feeds {
		if min == 0 || f.Period < min {
			min = f.Period
		}
	}
	return int(min.Seconds())
}

// formatTime formats a timestamp the way the output shows times: clock
// first, then the day.
func formatTime(t time.Time, cfg *config.Config) string {
	if t.IsZero() {
		return "never"
	}
	return html.EscapeString(t.Format(cfg.TimeFormat) + ", " + t.Format(cfg.DayFormat))
}
