package tvmaze

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/hbollon/go-edlib"
	"github.com/hobeone/epnamer/indexers"
	"golang.org/x/net/html/charset"
)

const (
	// DefaultURL is the TVmaze API endpoint.
	DefaultURL = "https://api.tvmaze.com"
	// DefaultMinSimilarity is the lowest Jaro-Winkler similarity between the
	// requested name and a search hit that is accepted as the show.
	DefaultMinSimilarity = 0.7
	indexerName          = "tvmaze"
)

// TVMazeIndexer looks up episode guides on TVmaze.
type TVMazeIndexer struct {
	URL           string
	MinSimilarity float32
	httpClient    *http.Client
}

// NewTVMazeIndexer returns a new indexer
func NewTVMazeIndexer(options ...func(*TVMazeIndexer)) *TVMazeIndexer {
	t := &TVMazeIndexer{
		URL:           DefaultURL,
		MinSimilarity: DefaultMinSimilarity,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// SetClient set's the httpclient the Indexer will use.
//
// Example:
//
//	NewTVMazeIndexer(SetClient(httpclient))
func SetClient(c *http.Client) func(*TVMazeIndexer) {
	return func(t *TVMazeIndexer) {
		t.httpClient = c
	}
}

// SetURL sets the API base url.
func SetURL(u string) func(*TVMazeIndexer) {
	return func(t *TVMazeIndexer) {
		if u != "" {
			t.URL = strings.TrimRight(u, "/")
		}
	}
}

// SetMinSimilarity sets the name similarity threshold in [0, 1].
func SetMinSimilarity(s float32) func(*TVMazeIndexer) {
	return func(t *TVMazeIndexer) {
		t.MinSimilarity = s
	}
}

// Name returns the string name of this indexer.
func (t *TVMazeIndexer) Name() string {
	return indexerName
}

// Source returns the attribution for TVmaze data.
func (t *TVMazeIndexer) Source() string {
	return "TVmaze <https://www.tvmaze.com>"
}

type searchResult struct {
	Score float64 `json:"score"`
	Show  show    `json:"show"`
}

type show struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type episode struct {
	Name   string `json:"name"`
	Season *int   `json:"season"`
	Number *int   `json:"number"`
}

// GetGuide implements indexers.Indexer.
func (t *TVMazeIndexer) GetGuide(ctx context.Context, showName string) (*indexers.Guide, error) {
	name := strings.TrimSpace(showName)
	if name == "" {
		return nil, &indexers.NotFoundError{Show: showName, Indexer: indexerName}
	}

	var results []searchResult
	q := url.Values{}
	q.Set("q", name)
	if err := t.getJSON(ctx, "/search/shows?"+q.Encode(), &results); err != nil {
		if err == errNotFound {
			return nil, &indexers.NotFoundError{Show: showName, Indexer: indexerName}
		}
		return nil, err
	}

	best, ok := t.bestMatch(name, results)
	if !ok {
		glog.Infof("tvmaze: no show close enough to '%s' among %d results", name, len(results))
		return nil, &indexers.NotFoundError{Show: showName, Indexer: indexerName}
	}
	glog.Infof("tvmaze: using show '%s' (id %d) for '%s'", best.Name, best.ID, name)

	var eps []episode
	if err := t.getJSON(ctx, fmt.Sprintf("/shows/%d/episodes?specials=1", best.ID), &eps); err != nil {
		if err == errNotFound {
			return nil, &indexers.NotFoundError{Show: showName, Indexer: indexerName}
		}
		return nil, err
	}

	entries := make([]indexers.GuideEntry, 0, len(eps))
	for _, ep := range eps {
		if ep.Season == nil || ep.Number == nil {
			// unnumbered specials can't be matched by code
			continue
		}
		entries = append(entries, indexers.GuideEntry{
			Season:  *ep.Season,
			Episode: *ep.Number,
			Title:   ep.Name,
		})
	}
	if glog.V(3) {
		glog.Infof("tvmaze: episodes for %s: %s", best.Name, spew.Sdump(entries))
	}

	g := indexers.NewGuide(best.Name, entries)
	g.Indexer = indexerName
	g.ShowID = strconv.FormatInt(best.ID, 10)
	return g, nil
}

// bestMatch picks the result whose name is most similar to name.  Ties keep
// TVmaze's own ordering.
func (t *TVMazeIndexer) bestMatch(name string, results []searchResult) (show, bool) {
	want := strings.ToLower(name)
	var best show
	var bestSim float32 = -1
	for _, r := range results {
		sim := edlib.JaroWinklerSimilarity(want, strings.ToLower(r.Show.Name))
		glog.V(2).Infof("tvmaze: '%s' vs '%s' similarity %.3f", name, r.Show.Name, sim)
		if sim > bestSim {
			best, bestSim = r.Show, sim
		}
	}
	if bestSim < t.MinSimilarity {
		return show{}, false
	}
	return best, true
}

type apiError struct {
	URL    string
	Status int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("tvmaze: %s returned status %d", e.URL, e.Status)
}

var errNotFound = &apiError{Status: http.StatusNotFound}

func (t *TVMazeIndexer) getJSON(ctx context.Context, path string, v interface{}) error {
	u := t.URL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	glog.V(1).Infof("tvmaze: getting %s", u)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error getting url '%s': %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return &apiError{URL: u, Status: resp.StatusCode}
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("error reading response from '%s': %w", u, err)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		glog.Errorf("Error decoding tvmaze response from %s: %s", u, err)
		return fmt.Errorf("error decoding response from '%s': %w", u, err)
	}
	return nil
}
