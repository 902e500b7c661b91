// ABOUTME: Aggregate state owning the feed map and article catalog
// ABOUTME: Versioned JSON serialization; a version mismatch on load is fatal

package state

import (
	"encoding/json"
	"fmt"

	"github.com/harper/gather/internal/models"
)

// FormatVersion is the on-disk state format. A state file written by a
// different version is never silently migrated or discarded.
const FormatVersion = 2

// ErrVersionMismatch is wrapped by Decode when the file's version tag does
// not match FormatVersion.
var ErrVersionMismatch = fmt.Errorf("state format version mismatch")

// State is the single persisted aggregate: every feed record keyed by URL
// and every article keyed by its identity digest. It satisfies
// persist.Persistable via the modified flag, which is deliberately not
// serialized.
type State struct {
	Feeds    map[string]*models.Feed    `json:"feeds"`
	Articles map[string]*models.Article `json:"articles"`

	modified bool
}

// New constructs an empty aggregate, as used when the state file is absent.
func New() *State {
	return &State{
		Feeds:    make(map[string]*models.Feed),
		Articles: make(map[string]*models.Article),
	}
}

// IsModified reports whether the aggregate has changed since load.
func (s *State) IsModified() bool { return s.modified }

// SetModified marks (or clears) the aggregate's modified flag. The
// persistent store skips the physical write when the flag is clear.
func (s *State) SetModified(v bool) { s.modified = v }

// envelope is the serialized form, carrying the format version tag.
type envelope struct {
	Version  int                        `json:"version"`
	Feeds    map[string]*models.Feed    `json:"feeds"`
	Articles map[string]*models.Article `json:"articles"`
}

// Encode serializes the aggregate with its format version.
func (s *State) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(envelope{
		Version:  FormatVersion,
		Feeds:    s.Feeds,
		Articles: s.Articles,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// Decode deserializes an aggregate, checking the format version first so
// the mismatch diagnostic names both versions instead of surfacing a
// confusing field error.
func Decode(data []byte) (*State, error) {
	var versionOnly struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &versionOnly); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if versionOnly.Version != FormatVersion {
		return nil, fmt.Errorf("%w: state file version %d, expected %d",
			ErrVersionMismatch, versionOnly.Version, FormatVersion)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	s := &State{Feeds: env.Feeds, Articles: env.Articles}
	if s.Feeds == nil {
		s.Feeds = make(map[string]*models.Feed)
	}
	if s.Articles == nil {
		s.Articles = make(map[string]*models.Article)
	}
	return s, nil
}
