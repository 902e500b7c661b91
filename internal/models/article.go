// ABOUTME: Article record keyed by a content-derived identity digest
// ABOUTME: Tracks first/last observation times, source feed, and display content

package models

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Content is the structured item payload an article carries for rendering.
// Fields come from the upstream entry before any sanitization, so the
// identity digest is stable across sanitizer changes.
type Content struct {
	Title       string     `json:"title,omitempty"`
	Link        string     `json:"link,omitempty"`
	ID          string     `json:"id,omitempty"`
	Description string     `json:"description,omitempty"`
	Published   *time.Time `json:"published,omitempty"`
}

// Article represents one observed feed item.
//
// Sequence is the entry's position within the fetch that first observed
// it, used as a deterministic sort tie-break. FirstSeen fixes the
// article's age; LastSeen is refreshed whenever an equivalent item
// reappears and drives expiry.
type Article struct {
	Hash      string    `json:"hash"`
	Feed      string    `json:"feed"`
	Sequence  int       `json:"sequence"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Content   Content   `json:"content"`
}

// NewArticle creates an article first observed now, computing its identity
// from the owning feed's URL and the entry content.
func NewArticle(feedURL string, seq int, content Content, now time.Time) *Article {
	return &Article{
		Hash:      ContentHash(feedURL, content.Title, content.Link, content.Description),
		Feed:      feedURL,
		Sequence:  seq,
		FirstSeen: now,
		LastSeen:  now,
		Content:   content,
	}
}

// Refresh records a re-observation of an equivalent item. Only LastSeen
// moves; FirstSeen, Sequence, and Content keep their first-observation
// values.
func (a *Article) Refresh(now time.Time) {
	a.LastSeen = now
}

// Expirable reports whether the article has been absent from its feed for
// longer than the expiry threshold. The caller is responsible for only
// asking this after a successful fetch confirmed the absence.
func (a *Article) Expirable(now time.Time, expireAge time.Duration) bool {
	return now.Sub(a.LastSeen) > expireAge
}

// ContentHash computes the article identity digest: SHA-1 over the owning
// feed URL and the entry's title, link, and description, NUL-separated so
// field boundaries cannot collide. Upstream entry ids are deliberately not
// part of the digest; they are too often missing or unstable.
func ContentHash(feedURL, title, link, description string) string {
	h := sha1.New()
	for i, s := range []string{feedURL, title, link, description} {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}
