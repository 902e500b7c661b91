// ABOUTME: Tests for the rendering pipeline: ordering, dedup, bounding, and output
// ABOUTME: Uses the real sanitizer against an in-memory catalog

package render_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harper/gather/internal/config"
	"github.com/harper/gather/internal/content"
	"github.com/harper/gather/internal/models"
	"github.com/harper/gather/internal/render"
	"github.com/harper/gather/internal/state"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ShowFeeds = false
	cfg.UseRefresh = false
	return cfg
}

func addFeed(st *state.State, url, title string) *models.Feed {
	f := models.NewFeed(url, 30*time.Minute, nil)
	f.Title = title
	st.Feeds[url] = f
	return f
}

func addArticle(st *state.State, feedURL string, seq int, c models.Content, firstSeen time.Time) *models.Article {
	a := models.NewArticle(feedURL, seq, c, firstSeen)
	st.Articles[a.Hash] = a
	return a
}

func renderToString(t *testing.T, cfg *config.Config, st *state.State) (string, render.Stats) {
	t.Helper()
	r := render.New(cfg, content.NewSanitizer(), render.NewLoader())
	var buf bytes.Buffer
	stats, err := r.WriteTo(&buf, st, now)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return buf.String(), stats
}

func TestWriteTo_OrdersNewestFirst(t *testing.T) {
	cfg := testConfig()
	st := state.New()
	addFeed(st, "http://f/feed", "F")
	addArticle(st, "http://f/feed", 0, models.Content{Title: "Old"}, now.Add(-2*time.Hour))
	addArticle(st, "http://f/feed", 1, models.Content{Title: "New"}, now.Add(-time.Hour))

	out, stats := renderToString(t, cfg, st)
	if stats.Shown != 2 {
		t.Fatalf("expected 2 shown, got %d", stats.Shown)
	}
	if strings.Index(out, "New") > strings.Index(out, "Old") {
		t.Errorf("newer article must come first:\n%s", out)
	}
}

func TestWriteTo_FeedDateOrdering(t *testing.T) {
	cfg := testConfig()
	cfg.SortByFeedDate = true
	st := state.New()
	addFeed(st, "http://f/feed", "F")

	early := now.Add(-20 * time.Hour)
	late := now.Add(-time.Hour)
	// Seen in the opposite order of their published dates.
	addArticle(st, "http://f/feed", 0, models.Content{Title: "PublishedLate", Published: &late}, now.Add(-3*time.Hour))
	addArticle(st, "http://f/feed", 1, models.Content{Title: "PublishedEarly", Published: &early}, now.Add(-time.Minute))

	out, _ := renderToString(t, cfg, st)
	if strings.Index(out, "PublishedLate") > strings.Index(out, "PublishedEarly") {
		t.Errorf("feed-date ordering must use the published date:\n%s", out)
	}
}

func TestWriteTo_DedupByLinkAcrossFeeds(t *testing.T) {
	cfg := testConfig()
	cfg.HideDuplicates = []string{"link"}
	st := state.New()
	addFeed(st, "http://a/feed", "A")
	addFeed(st, "http://b/feed", "B")

	// Same link from two feeds; the one from feed A sorts first (newer).
	addArticle(st, "http://a/feed", 0, models.Content{Title: "Original", Link: "http://x/post"}, now.Add(-time.Hour))
	addArticle(st, "http://b/feed", 0, models.Content{Title: "Repost", Link: "http://x/post"}, now.Add(-2*time.Hour))

	out, stats := renderToString(t, cfg, st)
	if stats.Shown != 1 || stats.Duplicates != 1 {
		t.Fatalf("expected 1 shown and 1 duplicate, got %+v", stats)
	}
	if !strings.Contains(out, "Original") || strings.Contains(out, "Repost") {
		t.Errorf("first in sort order wins:\n%s", out)
	}
}

func TestWriteTo_DedupFirstKeyOnly(t *testing.T) {
	cfg := testConfig()
	cfg.HideDuplicates = []string{"id", "link"}
	st := state.New()
	addFeed(st, "http://f/feed", "F")

	// Both carry an ID, and distinct IDs, so the shared link is never
	// consulted: no fallback to later keys.
	addArticle(st, "http://f/feed", 0, models.Content{Title: "One", ID: "id-1", Link: "http://x/post"}, now.Add(-time.Hour))
	addArticle(st, "http://f/feed", 1, models.Content{Title: "Two", ID: "id-2", Link: "http://x/post"}, now.Add(-2*time.Hour))

	_, stats := renderToString(t, cfg, st)
	if stats.Shown != 2 || stats.Duplicates != 0 {
		t.Errorf("distinct ids must suppress link dedup, got %+v", stats)
	}
}

func TestWriteTo_AllowDuplicatesOptOut(t *testing.T) {
	cfg := testConfig()
	cfg.HideDuplicates = []string{"link"}
	st := state.New()
	addFeed(st, "http://a/feed", "A")
	b := addFeed(st, "http://b/feed", "B")
	b.Args = map[string]string{"allowduplicates": "true"}

	addArticle(st, "http://a/feed", 0, models.Content{Title: "One", Link: "http://x/post"}, now.Add(-time.Hour))
	addArticle(st, "http://b/feed", 0, models.Content{Title: "Two", Link: "http://x/post"}, now.Add(-2*time.Hour))

	_, stats := renderToString(t, cfg, st)
	if stats.Shown != 2 || stats.Duplicates != 0 {
		t.Errorf("allowduplicates feed must bypass dedup, got %+v", stats)
	}
}

func TestWriteTo_Bounds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxArticles = 2
	cfg.MaxAge = 24 * time.Hour
	st := state.New()
	addFeed(st, "http://f/feed", "F")
	addArticle(st, "http://f/feed", 0, models.Content{Title: "A"}, now.Add(-time.Hour))
	addArticle(st, "http://f/feed", 1, models.Content{Title: "B"}, now.Add(-2*time.Hour))
	addArticle(st, "http://f/feed", 2, models.Content{Title: "C"}, now.Add(-3*time.Hour))
	addArticle(st, "http://f/feed", 3, models.Content{Title: "Stale"}, now.Add(-48*time.Hour))

	out, stats := renderToString(t, cfg, st)
	if stats.Shown != 2 {
		t.Errorf("maxarticles must cap output, got %d", stats.Shown)
	}
	if strings.Contains(out, "Stale") {
		t.Errorf("article older than maxage must be dropped:\n%s", out)
	}
}

func TestWriteTo_UntitledFallbacks(t *testing.T) {
	cfg := testConfig()
	st := state.New()
	addFeed(st, "http://f/feed", "F")
	addArticle(st, "http://f/feed", 0, models.Content{Link: "http://x/post"}, now.Add(-time.Hour))
	addArticle(st, "http://f/feed", 1, models.Content{Description: "text only"}, now.Add(-2*time.Hour))

	out, _ := renderToString(t, cfg, st)
	if !strings.Contains(out, ">Link</a>") {
		t.Errorf("untitled article with a link must show \"Link\":\n%s", out)
	}
	if !strings.Contains(out, "Article") {
		t.Errorf("untitled, linkless article must show \"Article\":\n%s", out)
	}
}

func TestWriteTo_SanitizesDescription(t *testing.T) {
	cfg := testConfig()
	st := state.New()
	addFeed(st, "http://f/feed", "F")
	addArticle(st, "http://f/feed", 0, models.Content{
		Title:       "T",
		Description: `safe <script>alert(1)</script><p>kept</p>`,
	}, now.Add(-time.Hour))

	out, _ := renderToString(t, cfg, st)
	if strings.Contains(out, "<script>") {
		t.Errorf("script must be stripped:\n%s", out)
	}
	if !strings.Contains(out, "<p>kept</p>") {
		t.Errorf("benign markup must survive:\n%s", out)
	}
}

func TestWriteTo_RelativeLinksResolved(t *testing.T) {
	cfg := testConfig()
	st := state.New()
	f := addFeed(st, "http://f/feed", "F")
	f.Link = "http://site.example/blog/"
	addArticle(st, "http://f/feed", 0, models.Content{Title: "T", Link: "post/1"}, now.Add(-time.Hour))

	out, _ := renderToString(t, cfg, st)
	if !strings.Contains(out, `href="http://site.example/blog/post/1"`) {
		t.Errorf("relative link must be resolved against the feed link:\n%s", out)
	}
}

func TestWriteTo_FeedsTableAndRefresh(t *testing.T) {
	cfg := testConfig()
	cfg.ShowFeeds = true
	cfg.UseRefresh = true
	st := state.New()
	f := addFeed(st, "http://f/feed", "Zeta")
	f.Period = 10 * time.Minute
	f.LastUpdate = now.Add(-5 * time.Minute)
	addFeed(st, "http://g/feed", "alpha").Period = 45 * time.Minute

	out, _ := renderToString(t, cfg, st)
	if !strings.Contains(out, `<table id="feeds">`) {
		t.Fatalf("feeds table missing:\n%s", out)
	}
	// Case-insensitive name order: alpha before Zeta.
	if strings.Index(out, "alpha") > strings.Index(out, "Zeta") {
		t.Errorf("feeds table must sort by name case-insensitively:\n%s", out)
	}
	// Never-fetched feed shows "never".
	if !strings.Contains(out, "never") {
		t.Errorf("never-fetched feed must show \"never\":\n%s", out)
	}
	// Refresh is the smallest period in seconds.
	if !strings.Contains(out, `content="600"`) {
		t.Errorf("meta refresh must use the smallest period:\n%s", out)
	}
}

func TestWriteTo_TogglesOmitSections(t *testing.T) {
	cfg := testConfig()
	st := state.New()
	addFeed(st, "http://f/feed", "F")

	out, _ := renderToString(t, cfg, st)
	if strings.Contains(out, "feedstats") {
		t.Errorf("showfeeds off must omit the table:\n%s", out)
	}
	if strings.Contains(out, "http-equiv") {
		t.Errorf("userefresh off must omit the meta refresh:\n%s", out)
	}
}

func TestWriteTo_CustomTemplates(t *testing.T) {
	dir := t.TempDir()
	pageTpl := filepath.Join(dir, "page.tpl")
	itemTpl := filepath.Join(dir, "item.tpl")
	if err := os.WriteFile(pageTpl, []byte("PAGE[__items__]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(itemTpl, []byte("<__title__>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Template = pageTpl
	cfg.ItemTemplate = itemTpl
	cfg.DaySections = false
	cfg.TimeSections = false
	st := state.New()
	addFeed(st, "http://f/feed", "F")
	addArticle(st, "http://f/feed", 0, models.Content{Title: "T"}, now.Add(-time.Hour))

	out, _ := renderToString(t, cfg, st)
	if out != "PAGE[<T>]" {
		t.Errorf("got %q", out)
	}
}

func TestWriteFile_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.html")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	st := state.New()
	addFeed(st, "http://f/feed", "F")
	addArticle(st, "http://f/feed", 0, models.Content{Title: "T"}, now.Add(-time.Hour))

	r := render.New(cfg, content.NewSanitizer(), render.NewLoader())
	if _, err := r.WriteFile(path, st, now); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "T") {
		t.Errorf("output not replaced:\n%s", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".new-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
