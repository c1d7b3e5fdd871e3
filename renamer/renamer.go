package renamer

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/hobeone/epnamer/indexers"
	"github.com/hobeone/epnamer/naming"
	"github.com/hobeone/epnamer/storage"
)

// Request is what a front end asks for: rename the episodes of ShowName found
// under Roots.
type Request struct {
	Roots    []string
	ShowName string
	// Patterns replace the default episode regexes when set.
	Patterns []string
	// Template is a naming.Formatter template, naming.DefaultTemplate if empty.
	Template string
	// BareEpisodeDigits is how many trailing digits of a bare number like
	// "102" are the episode.  Zero means naming.DefaultBareEpisodeDigits.
	BareEpisodeDigits int
	// Refresh drops any cached guide for ShowName before the lookup.
	Refresh bool
}

func (r Request) tools() (*naming.Matcher, *naming.Formatter, error) {
	var regexes []naming.NameRegex
	if len(r.Patterns) > 0 {
		var err error
		regexes, err = naming.CompilePatterns(r.Patterns)
		if err != nil {
			return nil, nil, err
		}
	} else {
		digits := r.BareEpisodeDigits
		if digits <= 0 {
			digits = naming.DefaultBareEpisodeDigits
		}
		regexes = naming.DefaultRegexes(digits)
	}
	f, err := naming.NewFormatter(r.Template)
	if err != nil {
		return nil, nil, err
	}
	return naming.NewMatcher(regexes), f, nil
}

// Session holds everything needed to build a RenameMap for one show.  It is
// owned by the caller and never shared between shows.
type Session struct {
	ShowName  string
	Guide     *indexers.Guide
	Matcher   *naming.Matcher
	Formatter *naming.Formatter
}

// NewSession returns a Session for req using an already fetched guide.
func NewSession(req Request, guide *indexers.Guide) (*Session, error) {
	m, f, err := req.tools()
	if err != nil {
		return nil, err
	}
	return &Session{
		ShowName:  strings.TrimSpace(req.ShowName),
		Guide:     guide,
		Matcher:   m,
		Formatter: f,
	}, nil
}

// Entry is a single planned rename.
type Entry struct {
	Source      string
	Destination string
	Code        naming.EpisodeCode
	Title       string
}

// RenameMap is an ordered set of renames with distinct sources and distinct
// destinations.
type RenameMap struct {
	ShowName string
	// Source credits where the episode titles came from.
	Source     string
	Entries    []Entry
	Collisions []Collision
}

// Len returns the number of planned renames.
func (rm *RenameMap) Len() int {
	return len(rm.Entries)
}

// Sorted returns the entries ordered by source file name, for display.
func (rm *RenameMap) Sorted() []Entry {
	sorted := make([]Entry, len(rm.Entries))
	copy(sorted, rm.Entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		bi, bj := filepath.Base(sorted[i].Source), filepath.Base(sorted[j].Source)
		if bi != bj {
			return bi < bj
		}
		return sorted[i].Source < sorted[j].Source
	})
	return sorted
}

// CollisionErr returns a *CollisionError describing the excluded entries or
// nil if there were none.
func (rm *RenameMap) CollisionErr() error {
	if len(rm.Collisions) == 0 {
		return nil
	}
	return &CollisionError{Collisions: rm.Collisions}
}

type candidate struct {
	Entry
	noop bool
}

// BuildRenameMap matches files against the session's guide.  Files that don't
// match a pattern or a guide entry are skipped, as are files already named
// correctly and files the session's template can't name.  Sources competing for the same destination, or whose
// destination exists according to exists, are left out and reported in
// Collisions.  A nil exists treats every destination as free.
func BuildRenameMap(files iter.Seq[string], s *Session, exists func(string) bool) *RenameMap {
	rm := &RenameMap{ShowName: s.ShowName}

	var cands []candidate
	seen := map[string]bool{}
	claims := map[string][]int{}
	for path := range files {
		if seen[path] {
			continue
		}
		seen[path] = true

		code, _, ok := s.Matcher.Match(path)
		if !ok {
			continue
		}
		ge, ok := s.Guide.Lookup(code)
		if !ok {
			glog.V(1).Infof("%s (%s) is not in the guide for %s, skipping", path, code, s.ShowName)
			continue
		}

		_, ext := naming.SplitExt(filepath.Base(path))
		name, err := s.Formatter.Format(s.ShowName, ge.Code(), ge.Title, ext)
		if err != nil {
			glog.Warningf("Skipping %s: %s", path, err)
			continue
		}
		dest := filepath.Join(filepath.Dir(path), name)

		claims[dest] = append(claims[dest], len(cands))
		cands = append(cands, candidate{
			Entry: Entry{
				Source:      path,
				Destination: dest,
				Code:        ge.Code(),
				Title:       ge.Title,
			},
			noop: dest == path,
		})
	}

	reported := map[string]bool{}
	for _, c := range cands {
		if c.noop {
			glog.V(2).Infof("%s is already named correctly", c.Source)
			continue
		}
		claimants := claims[c.Destination]
		switch {
		case len(claimants) > 1:
			if !reported[c.Destination] {
				reported[c.Destination] = true
				col := Collision{Destination: c.Destination}
				for _, i := range claimants {
					col.Sources = append(col.Sources, cands[i].Source)
				}
				glog.Warningf("Not renaming, %s", col)
				rm.Collisions = append(rm.Collisions, col)
			}
		case exists != nil && exists(c.Destination):
			col := Collision{Destination: c.Destination, Sources: []string{c.Source}, Existing: true}
			glog.Warningf("Not renaming, %s", col)
			rm.Collisions = append(rm.Collisions, col)
		default:
			rm.Entries = append(rm.Entries, c.Entry)
		}
	}
	return rm
}

// Generate fetches the guide for req.ShowName and builds the RenameMap for
// the files under req.Roots.  The filesystem is not touched unless the guide
// lookup succeeds.  It returns a *NoMatchError if nothing would be renamed
// and nothing collided.  Collisions are reported through
// RenameMap.CollisionErr.
func Generate(ctx context.Context, idx indexers.Indexer, broker *storage.Broker, req Request) (*RenameMap, error) {
	if strings.TrimSpace(req.ShowName) == "" {
		return nil, fmt.Errorf("a show name is required")
	}
	if len(req.Roots) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}
	// Bad patterns or templates fail before any network or disk access.
	if _, _, err := req.tools(); err != nil {
		return nil, err
	}

	if req.Refresh {
		if err := indexers.Forget(idx, req.ShowName); err != nil {
			return nil, err
		}
	}
	guide, err := idx.GetGuide(ctx, req.ShowName)
	if err != nil {
		return nil, err
	}
	glog.Infof("Got %d episodes of %s from %s", guide.Len(), guide.ShowName, idx.Name())

	s, err := NewSession(req, guide)
	if err != nil {
		return nil, err
	}
	rm := BuildRenameMap(broker.Walk(req.Roots...), s, broker.Exists)
	rm.Source = idx.Source()
	if rm.Len() == 0 && len(rm.Collisions) == 0 {
		return nil, &NoMatchError{Show: s.ShowName, Roots: req.Roots}
	}
	return rm, nil
}
