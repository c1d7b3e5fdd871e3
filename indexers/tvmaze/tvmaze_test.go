package tvmaze

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/golang/glog"
	"github.com/hobeone/epnamer/indexers"
	"github.com/hobeone/epnamer/naming"
	"github.com/hobeone/epnamer/test_helpers"
	. "github.com/onsi/gomega"
)

func readFixture(name string) []byte {
	content, err := os.ReadFile("testdata/" + name)
	if err != nil {
		glog.Fatalf("Error reading test feed: %s", err.Error())
	}
	return content
}

func fakeTVMaze(t *testing.T) (*TVMazeIndexer, *int) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/search/shows", func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.URL.Query().Get("q") == "Firefly" {
			w.Write(readFixture("search_firefly.json"))
			return
		}
		w.Write([]byte("[]"))
	})
	mux.HandleFunc("/shows/180/episodes", func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(readFixture("episodes_firefly.json"))
	})
	server, client := test_helpers.ServeHandler(mux)
	t.Cleanup(server.Close)
	return NewTVMazeIndexer(SetClient(client), SetURL(server.URL)), &requests
}

func TestGetGuide(t *testing.T) {
	RegisterTestingT(t)
	idx, _ := fakeTVMaze(t)

	g, err := idx.GetGuide(context.Background(), "Firefly")
	Expect(err).ToNot(HaveOccurred(), "Error getting guide: %s", err)
	Expect(g.ShowName).To(Equal("Firefly"))
	Expect(g.ShowID).To(Equal("180"))
	Expect(g.Indexer).To(Equal("tvmaze"))
	// The unnumbered special is dropped.
	Expect(g.Len()).To(Equal(6))

	e, ok := g.Lookup(naming.EpisodeCode{Season: 1, Episode: 3})
	Expect(ok).To(BeTrue())
	Expect(e.Title).To(Equal("Our Mrs. Reynolds"))
	Expect(e.Absolute).To(Equal(3))
}

func TestGetGuideNotFound(t *testing.T) {
	RegisterTestingT(t)
	idx, requests := fakeTVMaze(t)

	_, err := idx.GetGuide(context.Background(), "Nonexistent Show 12345")
	var nf *indexers.NotFoundError
	Expect(errors.As(err, &nf)).To(BeTrue())
	Expect(nf.Show).To(Equal("Nonexistent Show 12345"))
	Expect(*requests).To(Equal(1))

	_, err = idx.GetGuide(context.Background(), "   ")
	Expect(errors.As(err, &nf)).To(BeTrue())
	Expect(*requests).To(Equal(1))
}

func TestGetGuideRejectsDistantNames(t *testing.T) {
	RegisterTestingT(t)
	idx, _ := fakeTVMaze(t)
	idx.MinSimilarity = 1.01

	_, err := idx.GetGuide(context.Background(), "Firefly")
	var nf *indexers.NotFoundError
	Expect(errors.As(err, &nf)).To(BeTrue())
}

func TestBestMatch(t *testing.T) {
	RegisterTestingT(t)
	idx := NewTVMazeIndexer()

	results := []searchResult{
		{Score: 0.9, Show: show{ID: 2, Name: "Firefly Lane"}},
		{Score: 0.5, Show: show{ID: 1, Name: "Firefly"}},
	}
	best, ok := idx.bestMatch("firefly", results)
	Expect(ok).To(BeTrue())
	Expect(best.ID).To(BeNumerically("==", 1))

	_, ok = idx.bestMatch("firefly", nil)
	Expect(ok).To(BeFalse())
}

func TestServerErrors(t *testing.T) {
	RegisterTestingT(t)

	server, client := test_helpers.ServeFile(500, "oops", "text/plain")
	defer server.Close()
	idx := NewTVMazeIndexer(SetClient(client), SetURL(server.URL))

	_, err := idx.GetGuide(context.Background(), "Firefly")
	Expect(err).To(HaveOccurred())
	var nf *indexers.NotFoundError
	Expect(errors.As(err, &nf)).To(BeFalse())
	var ae *apiError
	Expect(errors.As(err, &ae)).To(BeTrue())
	Expect(ae.Status).To(Equal(500))

	server404, client404 := test_helpers.ServeFile(404, "{}", "application/json")
	defer server404.Close()
	idx = NewTVMazeIndexer(SetClient(client404), SetURL(server404.URL))
	_, err = idx.GetGuide(context.Background(), "Firefly")
	Expect(errors.As(err, &nf)).To(BeTrue())

	serverBad, clientBad := test_helpers.ServeFile(200, "<html>", "text/html")
	defer serverBad.Close()
	idx = NewTVMazeIndexer(SetClient(clientBad), SetURL(serverBad.URL))
	_, err = idx.GetGuide(context.Background(), "Firefly")
	Expect(err).To(MatchError(ContainSubstring("error decoding response")))
}

func TestCancelledContext(t *testing.T) {
	RegisterTestingT(t)
	idx, requests := fakeTVMaze(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.GetGuide(ctx, "Firefly")
	Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	Expect(*requests).To(Equal(0))
}
