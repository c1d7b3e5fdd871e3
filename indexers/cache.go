package indexers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/hobeone/epnamer/db"
	"github.com/jonboulle/clockwork"
)

// DefaultCacheTTL is how long a cached guide is used before asking the
// upstream indexer again.
const DefaultCacheTTL = 24 * time.Hour

// CachingIndexer serves guides from the database, fetching from an upstream
// Indexer when the cached copy is missing or older than TTL.  Lookups that
// fail upstream are not cached.
type CachingIndexer struct {
	Upstream Indexer
	TTL      time.Duration
	clock    clockwork.Clock
	dbh      *db.Handle
}

// NewCachingIndexer wraps upstream with a cache stored in dbh.
func NewCachingIndexer(upstream Indexer, dbh *db.Handle, options ...func(*CachingIndexer)) *CachingIndexer {
	c := &CachingIndexer{
		Upstream: upstream,
		TTL:      DefaultCacheTTL,
		clock:    clockwork.NewRealClock(),
		dbh:      dbh,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// SetClock sets the clock used to age cache entries.
func SetClock(clock clockwork.Clock) func(*CachingIndexer) {
	return func(c *CachingIndexer) {
		c.clock = clock
	}
}

// SetTTL sets how long cached guides stay fresh.  Zero disables caching reads.
func SetTTL(ttl time.Duration) func(*CachingIndexer) {
	return func(c *CachingIndexer) {
		c.TTL = ttl
	}
}

// Name implements Indexer.
func (c *CachingIndexer) Name() string {
	return c.Upstream.Name()
}

// Source implements Indexer.
func (c *CachingIndexer) Source() string {
	return c.Upstream.Source()
}

// GetGuide implements Indexer.
func (c *CachingIndexer) GetGuide(ctx context.Context, showName string) (*Guide, error) {
	show, err := c.dbh.GetShowByLookupName(showName)
	switch {
	case err == nil:
		age := c.clock.Since(show.LastIndexerUpdate)
		if c.TTL > 0 && age < c.TTL && show.Indexer == c.Upstream.Name() {
			glog.V(1).Infof("Using cached guide for %s (%s old)", showName, age)
			return guideFromShow(show), nil
		}
		glog.V(1).Infof("Cached guide for %s is stale, refreshing", showName)
	case db.IsNotFound(err):
	default:
		glog.Warningf("Error reading cached guide for %s: %s", showName, err)
	}

	g, err := c.Upstream.GetGuide(ctx, showName)
	if err != nil {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			glog.Errorf("Error getting guide for %s from %s: %s", showName, c.Upstream.Name(), err)
		}
		return nil, err
	}

	if err := c.dbh.SaveShow(showFromGuide(showName, c.Upstream.Name(), g, c.clock.Now())); err != nil {
		glog.Warningf("Error caching guide for %s: %s", showName, err)
	}
	return g, nil
}

// Forget drops the cached guide for showName so the next lookup goes
// upstream.  Nothing cached is not an error.
func (c *CachingIndexer) Forget(showName string) error {
	err := c.dbh.DeleteShow(showName)
	if err != nil && !db.IsNotFound(err) {
		return fmt.Errorf("error dropping cached guide for %s: %w", showName, err)
	}
	glog.V(1).Infof("Dropped cached guide for %s", showName)
	return nil
}

// Forget drops any cached guide idx holds for showName.  Indexers without a
// cache have nothing to forget.
func Forget(idx Indexer, showName string) error {
	if c, ok := idx.(*CachingIndexer); ok {
		return c.Forget(showName)
	}
	return nil
}

func guideFromShow(s *db.Show) *Guide {
	entries := make([]GuideEntry, len(s.Episodes))
	for i, ep := range s.Episodes {
		entries[i] = GuideEntry{
			Season:   int(ep.Season),
			Episode:  int(ep.Episode),
			Absolute: int(ep.Absolute),
			Title:    ep.Name,
		}
	}
	g := NewGuide(s.Name, entries)
	g.Indexer = s.Indexer
	g.ShowID = s.IndexerID
	return g
}

func showFromGuide(lookupName, indexer string, g *Guide, now time.Time) *db.Show {
	eps := make([]db.Episode, len(g.Entries))
	for i, e := range g.Entries {
		eps[i] = db.Episode{
			Season:   int64(e.Season),
			Episode:  int64(e.Episode),
			Absolute: int64(e.Absolute),
			Name:     e.Title,
		}
	}
	return &db.Show{
		LookupName:        lookupName,
		Name:              g.ShowName,
		Indexer:           indexer,
		IndexerID:         g.ShowID,
		Episodes:          eps,
		LastIndexerUpdate: now.UTC(),
	}
}
