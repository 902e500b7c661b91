// ABOUTME: Update scheduler driving one full cycle over the feed catalog
// ABOUTME: Reconciles config, fetches due feeds, merges entries, then expires confirmed-absent articles

package update

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/harper/gather/internal/config"
	"github.com/harper/gather/internal/fetch"
	"github.com/harper/gather/internal/models"
	"github.com/harper/gather/internal/state"
)

// FeedResult is the outcome of one attempted feed, as reported to the CLI.
// Feeds skipped because they were not due do not produce a result.
type FeedResult struct {
	URL        string
	Name       string
	Kind       fetch.Kind
	NewCount   int
	Refreshed  int
	NewURL     string
	StatusCode int
	Err        error
}

// Run performs one cycle: reconcile the configured feed set into the
// state (creating, reconfiguring, and cascade-deleting feed records),
// fetch every due feed — or only the forced target — merge the results,
// and finish with a single expiry pass.
//
// A non-empty target is fetched regardless of its period, with its cache
// validators cleared first so the fetch cannot short-circuit. One feed's
// failure never prevents later feeds from being attempted.
func Run(ctx context.Context, st *state.State, cfg *config.Config, fetcher fetch.Fetcher, target string, now time.Time) ([]FeedResult, error) {
	reconcile(st, cfg, now)

	var selected []*models.Feed
	if target != "" {
		feed, ok := st.Feeds[target]
		if !ok {
			return nil, fmt.Errorf("feed not found in config: %s", target)
		}
		feed.ClearValidators()
		st.SetModified(true)
		selected = append(selected, feed)
	} else {
		for _, url := range sortedFeedURLs(st) {
			if feed := st.Feeds[url]; feed.Due(now) {
				selected = append(selected, feed)
			}
		}
	}

	touched := make(map[string]bool)
	results := make([]FeedResult, 0, len(selected))
	for _, feed := range selected {
		res := updateFeed(ctx, st, feed, fetcher, now)
		if res.Kind == fetch.Success && res.NewCount+res.Refreshed > 0 {
			touched[feed.URL] = true
		}
		results = append(results, res)
	}

	expire(st, cfg, touched, now)
	return results, nil
}

// reconcile makes the state's feed set match configuration. Period and
// args are overwritten every pass so config edits take effect; a URL that
// disappeared from config takes all its articles with it.
func reconcile(st *state.State, cfg *config.Config, now time.Time) {
	seen := make(map[string]bool, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		seen[fc.URL] = true
		if feed, ok := st.Feeds[fc.URL]; ok {
			if feed.Period != fc.Period {
				feed.Period = fc.Period
				st.SetModified(true)
			}
			if !equalArgs(feed.Args, fc.Args) {
				feed.Args = fc.Args
				st.SetModified(true)
			}
		} else {
			st.Feeds[fc.URL] = models.NewFeed(fc.URL, fc.Period, fc.Args)
			st.SetModified(true)
			slog.Debug("new feed", "url", fc.URL)
		}
	}

	for url := range st.Feeds {
		if !seen[url] {
			delete(st.Feeds, url)
			st.SetModified(true)
			slog.Debug("removed feed", "url", url)
		}
	}
}

// updateFeed applies one fetch attempt's outcome to the catalog. The
// attempt timestamp advances unconditionally, success or not, so a broken
// feed still waits out its period before the next try. A failed fetch
// never touches the feed's existing articles.
func updateFeed(ctx context.Context, st *state.State, feed *models.Feed, fetcher fetch.Fetcher, now time.Time) FeedResult {
	feed.LastUpdate = now
	st.SetModified(true)

	outcome := fetcher.Fetch(ctx, fetch.Request{
		URL:          feed.URL,
		ETag:         feed.ETag,
		LastModified: feed.LastModified,
		Args:         feed.Args,
	})

	res := FeedResult{
		URL:        feed.URL,
		Name:       feed.DisplayName(),
		Kind:       outcome.Kind,
		NewURL:     outcome.NewURL,
		StatusCode: outcome.StatusCode,
		Err:        outcome.Err,
	}
	slog.Debug("fetched feed", "url", feed.URL, "outcome", outcome.Kind.String())

	switch outcome.Kind {
	case fetch.Unchanged:
		feed.SetValidators(outcome.ETag, outcome.LastModified)
	case fetch.Success:
		res.NewCount, res.Refreshed = merge(st, feed, outcome, now)
	}
	return res
}

// merge folds a successful fetch into the catalog. An empty entry list is
// treated like "unchanged": validators are stored but the feed does not
// count as touched, so nothing of its gets expired this cycle.
func merge(st *state.State, feed *models.Feed, outcome fetch.Outcome, now time.Time) (newCount, refreshed int) {
	feed.SetValidators(outcome.ETag, outcome.LastModified)
	if outcome.Feed.Title != "" {
		feed.Title = outcome.Feed.Title
	}
	if outcome.Feed.Link != "" {
		feed.Link = outcome.Feed.Link
	}

	entries := outcome.Feed.Entries
	if len(entries) == 0 {
		return 0, 0
	}

	// Replace semantics: feeds that republish their whole item set with
	// shifting identities get their old articles dropped up front.
	if feed.BoolArg("replace") {
		for hash, article := range st.Articles {
			if article.Feed == feed.URL {
				delete(st.Articles, hash)
			}
		}
	}

	for i := range entries {
		entry := &entries[i]
		content := models.Content{
			Title:       entry.Title,
			Link:        entry.Link,
			ID:          entry.ID,
			Description: entry.Description(),
			Published:   entry.Published,
		}
		hash := models.ContentHash(feed.URL, content.Title, content.Link, content.Description)
		if existing, ok := st.Articles[hash]; ok {
			existing.Refresh(now)
			refreshed++
		} else {
			st.Articles[hash] = models.NewArticle(feed.URL, i, content, now)
			newCount++
		}
	}
	st.SetModified(true)
	return newCount, refreshed
}

// expire runs once per cycle. Articles of feeds gone from configuration
// are removed unconditionally. Articles past the expiry age are removed
// only when their feed was successfully touched this cycle, so absence
// was positively confirmed; a skipped or failed feed keeps everything.
func expire(st *state.State, cfg *config.Config, touched map[string]bool, now time.Time) {
	for hash, article := range st.Articles {
		if _, ok := st.Feeds[article.Feed]; !ok {
			delete(st.Articles, hash)
			st.SetModified(true)
			continue
		}
		if touched[article.Feed] && article.Expirable(now, cfg.ExpireAge) {
			delete(st.Articles, hash)
			st.SetModified(true)
			slog.Debug("expired article", "feed", article.Feed, "hash", hash)
		}
	}
}

func equalArgs(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func sortedFeedURLs(st *state.State) []string {
	urls := make([]string, 0, len(st.Feeds))
	for url := range st.Feeds {
		urls = append(urls, url)
	}
	// Deterministic attempt order keeps logs and tests stable.
	sort.Strings(urls)
	return urls
}
