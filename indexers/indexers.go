package indexers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/hobeone/epnamer/naming"
)

// GuideEntry is one episode listed in an episode guide.
type GuideEntry struct {
	Season   int
	Episode  int
	Title    string
	Absolute int // position counting every non special episode, 0 if unknown
}

// Code returns the entry's season/episode pair.
func (e GuideEntry) Code() naming.EpisodeCode {
	return naming.EpisodeCode{Season: e.Season, Episode: e.Episode}
}

// Guide is the list of episodes of one show, keyed by season and episode.
type Guide struct {
	ShowName string // canonical name as known by the indexer
	Indexer  string
	ShowID   string
	Entries  []GuideEntry

	byCode     map[naming.EpisodeCode]int
	byAbsolute map[int]int
}

// NewGuide builds a Guide from entries in guide order.  Entries with a
// (season, episode) key already seen are dropped.  Absolute numbers missing
// from regular (season > 0) entries are filled in by position.
func NewGuide(showName string, entries []GuideEntry) *Guide {
	g := &Guide{
		ShowName:   showName,
		byCode:     make(map[naming.EpisodeCode]int, len(entries)),
		byAbsolute: make(map[int]int, len(entries)),
	}
	abs := 0
	for _, e := range entries {
		if _, dup := g.byCode[e.Code()]; dup {
			glog.Warningf("Guide for %s lists %s twice, ignoring %q", showName, e.Code(), e.Title)
			continue
		}
		if e.Season > 0 {
			abs++
			if e.Absolute == 0 {
				e.Absolute = abs
			}
		}
		g.byCode[e.Code()] = len(g.Entries)
		if e.Absolute > 0 {
			if _, dup := g.byAbsolute[e.Absolute]; !dup {
				g.byAbsolute[e.Absolute] = len(g.Entries)
			}
		}
		g.Entries = append(g.Entries, e)
	}
	return g
}

// Len returns the number of entries in the guide.
func (g *Guide) Len() int {
	return len(g.Entries)
}

// Lookup finds the entry for code by exact season and episode.  A code
// without a season that has no exact entry is looked up by absolute episode
// number.
func (g *Guide) Lookup(code naming.EpisodeCode) (GuideEntry, bool) {
	if i, ok := g.byCode[code]; ok {
		return g.Entries[i], true
	}
	if !code.HasSeason() {
		if i, ok := g.byAbsolute[code.Episode]; ok {
			return g.Entries[i], true
		}
	}
	return GuideEntry{}, false
}

// NotFoundError is returned when a show name resolves to nothing.
type NotFoundError struct {
	Show    string
	Indexer string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no show matching %q found on %s", e.Show, e.Indexer)
}

// Indexer looks up episode guides.  Implementations do not retry.
type Indexer interface {
	// GetGuide returns the guide for the show best matching showName or a
	// *NotFoundError.
	GetGuide(ctx context.Context, showName string) (*Guide, error)
	Name() string
	// Source is the attribution line for the guide data.
	Source() string
}

// IndexerRegistry maps indexer names to Indexers.
type IndexerRegistry map[string]Indexer

// Get returns the named indexer.
func (r IndexerRegistry) Get(name string) (Indexer, error) {
	idx, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown indexer %q", name)
	}
	return idx, nil
}

// StaticIndexer serves fixed guides.  It is used in tests and, loaded from a
// guide file, for offline runs.
type StaticIndexer struct {
	Guides map[string]*Guide
	Calls  int
	// Credit is returned by Source.
	Credit string
}

// NewStaticIndexer returns a StaticIndexer for the given guides, keyed by
// their ShowName.
func NewStaticIndexer(guides ...*Guide) *StaticIndexer {
	s := &StaticIndexer{
		Guides: make(map[string]*Guide, len(guides)),
		Credit: "built in test data",
	}
	for _, g := range guides {
		s.Guides[strings.ToLower(g.ShowName)] = g
	}
	return s
}

// Name implements Indexer.
func (s *StaticIndexer) Name() string {
	return "static"
}

// Source implements Indexer.
func (s *StaticIndexer) Source() string {
	return s.Credit
}

// GetGuide implements Indexer.
func (s *StaticIndexer) GetGuide(ctx context.Context, showName string) (*Guide, error) {
	s.Calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, ok := s.Guides[strings.ToLower(strings.TrimSpace(showName))]
	if !ok {
		return nil, &NotFoundError{Show: showName, Indexer: s.Name()}
	}
	return g, nil
}

type jsonGuide struct {
	Show    string `json:"show"`
	Entries []struct {
		Season   int    `json:"season"`
		Episode  int    `json:"episode"`
		Title    string `json:"title"`
		Absolute int    `json:"absolute"`
	} `json:"entries"`
}

// ReadGuides decodes a JSON list of guides:
//
//	[{"show": "Firefly", "entries": [{"season": 1, "episode": 1, "title": "Serenity"}]}]
func ReadGuides(r io.Reader) ([]*Guide, error) {
	var raw []jsonGuide
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error decoding guides: %w", err)
	}
	guides := make([]*Guide, 0, len(raw))
	for i, jg := range raw {
		if strings.TrimSpace(jg.Show) == "" {
			return nil, fmt.Errorf("guide %d has no show name", i)
		}
		entries := make([]GuideEntry, len(jg.Entries))
		for j, e := range jg.Entries {
			entries[j] = GuideEntry{Season: e.Season, Episode: e.Episode, Title: e.Title, Absolute: e.Absolute}
		}
		guides = append(guides, NewGuide(jg.Show, entries))
	}
	return guides, nil
}

// LoadStaticIndexer returns a StaticIndexer serving the guides in the JSON
// file at path.
func LoadStaticIndexer(path string) (*StaticIndexer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open guide file: %w", err)
	}
	defer f.Close()

	guides, err := ReadGuides(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	glog.Infof("Loaded %d guides from %s", len(guides), path)
	s := NewStaticIndexer(guides...)
	s.Credit = "guide file " + path
	return s, nil
}
