package renamer

import (
	"context"
	"errors"
	"flag"
	"os"
	"slices"
	"testing"

	"github.com/hobeone/epnamer/db"
	"github.com/hobeone/epnamer/indexers"
	"github.com/hobeone/epnamer/naming"
	"github.com/hobeone/epnamer/storage"
	"github.com/hobeone/epnamer/test_helpers"
	"github.com/spf13/afero"
	. "github.com/onsi/gomega"
)

func showGuide() *indexers.Guide {
	return indexers.NewGuide("Show", []indexers.GuideEntry{
		{Season: 1, Episode: 2, Title: "Pilot"},
		{Season: 1, Episode: 3, Title: "Second"},
	})
}

func setupTest(t *testing.T, files map[string]string) (*indexers.StaticIndexer, *storage.Broker) {
	flag.Set("logtostderr", "false")
	RegisterTestingT(t)
	return indexers.NewStaticIndexer(showGuide()), storage.NewBroker(test_helpers.MemFs(t, files))
}

func TestGenerateScenario(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/show.1x02.mkv": "2",
		"/tv/show.1x03.mkv": "3",
	})

	rm, err := Generate(context.Background(), idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Show"})
	Expect(err).ToNot(HaveOccurred())
	Expect(rm.CollisionErr()).To(BeNil())
	Expect(rm.Source).To(Equal("built in test data"))
	Expect(rm.Entries).To(Equal([]Entry{
		{
			Source:      "/tv/show.1x02.mkv",
			Destination: "/tv/Show - S01E02 - Pilot.mkv",
			Code:        naming.EpisodeCode{Season: 1, Episode: 2},
			Title:       "Pilot",
		},
		{
			Source:      "/tv/show.1x03.mkv",
			Destination: "/tv/Show - S01E03 - Second.mkv",
			Code:        naming.EpisodeCode{Season: 1, Episode: 3},
			Title:       "Second",
		},
	}))
}

func TestEpisodesMissingFromGuideAreSkipped(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/show.1x02.mkv":   "2",
		"/tv/show.1x05.mkv":   "5",
		"/tv/show.S09E01.avi": "9",
		"/tv/readme.txt":      "no code",
	})

	rm, err := Generate(context.Background(), idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Show"})
	Expect(err).ToNot(HaveOccurred())
	Expect(rm.Len()).To(Equal(1))
	Expect(rm.Entries[0].Source).To(Equal("/tv/show.1x02.mkv"))
}

func TestCollisionsAreExcluded(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/ep102.mkv":     "bare",
		"/tv/ep1x02.mkv":    "fov",
		"/tv/show.1x03.mkv": "3",
	})

	rm, err := Generate(context.Background(), idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Show"})
	Expect(err).ToNot(HaveOccurred())
	Expect(rm.Len()).To(Equal(1))
	Expect(rm.Entries[0].Source).To(Equal("/tv/show.1x03.mkv"))
	Expect(rm.Collisions).To(Equal([]Collision{{
		Destination: "/tv/Show - S01E02 - Pilot.mkv",
		Sources:     []string{"/tv/ep102.mkv", "/tv/ep1x02.mkv"},
	}}))

	var ce *CollisionError
	Expect(errors.As(rm.CollisionErr(), &ce)).To(BeTrue())
	Expect(ce.Error()).To(ContainSubstring("/tv/ep102.mkv, /tv/ep1x02.mkv"))

	_, err = NewExecutor(broker).Execute(rm, nil)
	Expect(err).ToNot(HaveOccurred())
	Expect(test_helpers.ListFiles(t, broker.Fs, "/tv")).To(Equal([]string{
		"/tv/Show - S01E03 - Second.mkv",
		"/tv/ep102.mkv",
		"/tv/ep1x02.mkv",
	}))
}

func TestOnlyCollisionsIsNotNoMatch(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/ep102.mkv":  "bare",
		"/tv/ep1x02.mkv": "fov",
	})

	rm, err := Generate(context.Background(), idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Show"})
	Expect(err).ToNot(HaveOccurred())
	Expect(rm.Len()).To(Equal(0))
	Expect(rm.CollisionErr()).To(HaveOccurred())
}

func TestExistingDestinationIsACollision(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/show.1x02.mkv":             "new",
		"/tv/Show - S01E02 - Pilot.avi": "other extension",
		"/tv/Show - S01E02 - Pilot.mkv": "already there",
	})

	rm, err := Generate(context.Background(), idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Show"})
	Expect(err).ToNot(HaveOccurred())
	Expect(rm.Len()).To(Equal(0))
	// The correctly named file claims its own path.
	Expect(rm.Collisions).To(Equal([]Collision{{
		Destination: "/tv/Show - S01E02 - Pilot.mkv",
		Sources:     []string{"/tv/Show - S01E02 - Pilot.mkv", "/tv/show.1x02.mkv"},
	}}))
}

func TestExistsCallback(t *testing.T) {
	RegisterTestingT(t)
	s, err := NewSession(Request{ShowName: "Show"}, showGuide())
	Expect(err).ToNot(HaveOccurred())

	exists := func(p string) bool { return p == "/tv/Show - S01E03 - Second.mkv" }
	rm := BuildRenameMap(slices.Values([]string{"/tv/show.1x02.mkv", "/tv/show.1x03.mkv", "/tv/show.1x02.mkv"}), s, exists)
	Expect(rm.Len()).To(Equal(1))
	Expect(rm.Collisions).To(HaveLen(1))
	Expect(rm.Collisions[0].Existing).To(BeTrue())
	Expect(rm.Collisions[0].String()).To(Equal("/tv/Show - S01E03 - Second.mkv already exists (wanted by /tv/show.1x03.mkv)"))
}

type countingFs struct {
	afero.Fs
	calls int
}

func (c *countingFs) Stat(name string) (os.FileInfo, error) {
	c.calls++
	return c.Fs.Stat(name)
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.calls++
	return c.Fs.Open(name)
}

func TestShowNotFoundTouchesNoFiles(t *testing.T) {
	idx, _ := setupTest(t, nil)
	fs := &countingFs{Fs: test_helpers.MemFs(t, map[string]string{"/tv/show.1x02.mkv": "2"})}
	broker := storage.NewBroker(fs)

	rm, err := Generate(context.Background(), idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Nonexistent Show 12345"})
	Expect(rm).To(BeNil())
	var nf *indexers.NotFoundError
	Expect(errors.As(err, &nf)).To(BeTrue())
	Expect(fs.calls).To(Equal(0))
}

func TestNoMatch(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{"/tv/readme.txt": "x"})

	_, err := Generate(context.Background(), idx, broker, Request{Roots: []string{"/tv", "/missing"}, ShowName: "Show"})
	var nm *NoMatchError
	Expect(errors.As(err, &nm)).To(BeTrue())
	Expect(nm.Error()).To(Equal(`no files to rename for "Show" under /tv, /missing`))
}

func TestBadRequestsFailBeforeLookup(t *testing.T) {
	idx, broker := setupTest(t, nil)
	ctx := context.Background()

	_, err := Generate(ctx, idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Show", Patterns: []string{`(?P<season>\d+)`}})
	Expect(err).To(MatchError(ContainSubstring("has no (?P<episode>...) group")))

	_, err = Generate(ctx, idx, broker, Request{Roots: []string{"/tv"}, ShowName: "Show", Template: "{{.Show"})
	Expect(err).To(MatchError(ContainSubstring("invalid naming template")))

	_, err = Generate(ctx, idx, broker, Request{Roots: []string{"/tv"}, ShowName: " "})
	Expect(err).To(HaveOccurred())

	_, err = Generate(ctx, idx, broker, Request{ShowName: "Show"})
	Expect(err).To(HaveOccurred())

	Expect(idx.Calls).To(Equal(0))
}

func TestCustomPatternsAndAbsoluteNumbers(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/show.ep2.mkv":  "abs",
		"/tv/show.1x02.mkv": "not matched by the custom pattern",
	})

	rm, err := Generate(context.Background(), idx, broker, Request{
		Roots:    []string{"/tv"},
		ShowName: "Show",
		Patterns: []string{`\.ep(?P<episode>\d+)$`},
	})
	Expect(err).ToNot(HaveOccurred())
	Expect(rm.Entries).To(Equal([]Entry{{
		Source:      "/tv/show.ep2.mkv",
		Destination: "/tv/Show - S01E03 - Second.mkv",
		Code:        naming.EpisodeCode{Season: 1, Episode: 3},
		Title:       "Second",
	}}))
}

func TestTemplateAndBareDigits(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/Season 1/show 0103 720p.mkv": "3",
	})

	rm, err := Generate(context.Background(), idx, broker, Request{
		Roots:             []string{"/tv"},
		ShowName:          "Show",
		Template:          "{{.Show}}.s{{pad .Season}}e{{pad .Episode}}",
		BareEpisodeDigits: 2,
	})
	Expect(err).ToNot(HaveOccurred())
	Expect(rm.Len()).To(Equal(1))
	Expect(rm.Entries[0].Destination).To(Equal("/tv/Season 1/Show.s01e03.mkv"))
}

func TestSorted(t *testing.T) {
	RegisterTestingT(t)
	rm := &RenameMap{Entries: []Entry{
		{Source: "/b/z.mkv"},
		{Source: "/a/z.mkv"},
		{Source: "/c/a.mkv"},
	}}
	sorted := rm.Sorted()
	Expect(sorted[0].Source).To(Equal("/c/a.mkv"))
	Expect(sorted[1].Source).To(Equal("/a/z.mkv"))
	Expect(sorted[2].Source).To(Equal("/b/z.mkv"))
	// Execution order is untouched.
	Expect(rm.Entries[0].Source).To(Equal("/b/z.mkv"))
}

func TestUnnameableFilesAreSkipped(t *testing.T) {
	RegisterTestingT(t)
	guide := indexers.NewGuide("Show", []indexers.GuideEntry{
		{Season: 1, Episode: 2, Title: "Pilot"},
		{Season: 1, Episode: 3, Title: "..."},
	})
	s, err := NewSession(Request{ShowName: "Show", Template: "{{.Title}}"}, guide)
	Expect(err).ToNot(HaveOccurred())

	rm := BuildRenameMap(slices.Values([]string{"/tv/show.1x02.mkv", "/tv/show.1x03.mkv"}), s, nil)
	Expect(rm.Entries).To(HaveLen(1))
	Expect(rm.Entries[0].Destination).To(Equal("/tv/Pilot.mkv"))
	Expect(rm.Collisions).To(BeEmpty())
}

func TestRefreshDropsCachedGuide(t *testing.T) {
	idx, broker := setupTest(t, map[string]string{
		"/tv/show.1x02.mkv": "2",
	})
	dbh := db.NewMemoryDBHandle(false)
	defer dbh.Close()
	cached := indexers.NewCachingIndexer(idx, dbh)
	req := Request{Roots: []string{"/tv"}, ShowName: "Show"}

	for i := 0; i < 2; i++ {
		_, err := Generate(context.Background(), cached, broker, req)
		Expect(err).ToNot(HaveOccurred())
	}
	Expect(idx.Calls).To(Equal(1))

	req.Refresh = true
	_, err := Generate(context.Background(), cached, broker, req)
	Expect(err).ToNot(HaveOccurred())
	Expect(idx.Calls).To(Equal(2))

	// Nothing cached and no cache at all are both fine.
	Expect(indexers.Forget(cached, "Other Show")).To(Succeed())
	_, err = Generate(context.Background(), idx, broker, req)
	Expect(err).ToNot(HaveOccurred())
}
