// ABOUTME: Tests for aggregate state serialization and version checking
// ABOUTME: Validates round-trips, version mismatch diagnostics, and the modified flag

package state

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harper/gather/internal/models"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	s := New()
	s.Feeds["http://a/feed"] = models.NewFeed("http://a/feed", 30*time.Minute, map[string]string{"user": "bob"})
	s.Feeds["http://a/feed"].SetValidators(`"tag"`, "Mon, 02 Jan 2006 15:04:05 GMT")
	art := models.NewArticle("http://a/feed", 2, models.Content{Title: "T", Link: "http://e/1", Description: "b"}, now)
	s.Articles[art.Hash] = art

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	loaded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	feed := loaded.Feeds["http://a/feed"]
	if feed == nil {
		t.Fatal("feed missing after round trip")
	}
	if feed.Period != 30*time.Minute || feed.ETag != `"tag"` || feed.Args["user"] != "bob" {
		t.Errorf("feed fields lost in round trip: %+v", feed)
	}

	got := loaded.Articles[art.Hash]
	if got == nil {
		t.Fatal("article missing after round trip")
	}
	if got.Sequence != 2 || got.Content.Title != "T" || !got.FirstSeen.Equal(now) {
		t.Errorf("article fields lost in round trip: %+v", got)
	}
	if loaded.IsModified() {
		t.Error("freshly decoded state must not be marked modified")
	}
}

func TestDecode_VersionMismatch(t *testing.T) {
	_, err := Decode([]byte(`{"version": 1, "feeds": {}, "articles": {}}`))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	// The diagnostic must name both versions
	if !strings.Contains(err.Error(), "version 1") || !strings.Contains(err.Error(), "expected 2") {
		t.Errorf("diagnostic does not name both versions: %v", err)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	if _, err := Decode([]byte("not json at all")); err == nil {
		t.Fatal("expected error for corrupt data")
	}
}

func TestDecode_MissingMaps(t *testing.T) {
	s, err := Decode([]byte(`{"version": 2}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if s.Feeds == nil || s.Articles == nil {
		t.Error("expected decoded state to have non-nil maps")
	}
}
