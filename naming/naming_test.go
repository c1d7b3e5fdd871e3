package naming

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestMediaFile(t *testing.T) {
	RegisterTestingT(t)

	tests := map[string]bool{
		"sAmPle123_test.mkv":          false,
		"._res_test.mkv":              false,
		"Show_S01E02_Extras.mkv":      false,
		"Show_S01E02.txt":             false,
		"Show_S01E02.mkv":             true,
		"/tv/Show/Season 1/ep102.mp4": true,
	}
	for str, testval := range tests {
		Expect(IsMediaFile(str)).To(Equal(testval), "Expected %s to return %v from IsMediaFile", str, testval)
	}
}

func TestSplitExt(t *testing.T) {
	RegisterTestingT(t)

	tests := map[string][2]string{
		"show.1x02.mkv":  {"show.1x02", ".mkv"},
		"Show.Name.102":  {"Show.Name.102", ""},
		"no_extension":   {"no_extension", ""},
		"trailing.":      {"trailing.", ""},
		"a.b.c.MP4":      {"a.b.c", ".MP4"},
		"Show - S01E02.": {"Show - S01E02.", ""},
	}
	for in, want := range tests {
		stem, ext := SplitExt(in)
		Expect(stem).To(Equal(want[0]), "stem of %s", in)
		Expect(ext).To(Equal(want[1]), "extension of %s", in)
	}
}

func TestRegexTestStrings(t *testing.T) {
	RegisterTestingT(t)

	for _, regex := range DefaultRegexes(DefaultBareEpisodeDigits) {
		Expect(regex.TestStrings).ToNot(BeEmpty(), "%s has no test strings", regex.Name)
		for _, ts := range regex.TestStrings {
			code, ok := regex.extract(ts.String)
			Expect(ok).To(Equal(ts.ShouldMatch), "Expected %s regex match of %s to be %v", regex.Name, ts.String, ts.ShouldMatch)
			if ts.ShouldMatch {
				Expect(code).To(Equal(ts.Code), "Wrong code from %s regex for %s", regex.Name, ts.String)
			}
		}
	}
}

func TestStandardAnyCase(t *testing.T) {
	RegisterTestingT(t)

	m := NewMatcher(nil)
	for _, name := range []string{
		"Show.S01E02.mkv",
		"show.s01e02.mkv",
		"SHOW.s01E02.avi",
		"Show.S01e02.720p.x264.mkv",
		"S01E02",
		"show - s1e2 - title.mp4",
	} {
		code, regex, ok := m.Match(name)
		Expect(ok).To(BeTrue(), "Expected %s to match", name)
		Expect(regex.Name).To(Equal("standard"))
		Expect(code).To(Equal(EpisodeCode{Season: 1, Episode: 2}), "Wrong code for %s", name)
	}
}

func TestMatcherPriority(t *testing.T) {
	RegisterTestingT(t)

	m := NewMatcher(nil)
	tests := []struct {
		name  string
		regex string
		code  EpisodeCode
	}{
		{"show.1x02.mkv", "fov", EpisodeCode{1, 2}},
		{"ep1x02.mkv", "fov", EpisodeCode{1, 2}},
		{"ep102.mkv", "bare", EpisodeCode{1, 2}},
		// the delimited form wins over the bare digits earlier in the name
		{"show.102.S03E04.mkv", "standard", EpisodeCode{3, 4}},
		{"Show.Name.1x05.205.mkv", "fov", EpisodeCode{1, 5}},
		{"/some/dir/S02E10/show.3x04.mkv", "fov", EpisodeCode{3, 4}},
	}
	for _, tc := range tests {
		code, regex, ok := m.Match(tc.name)
		Expect(ok).To(BeTrue(), "Expected %s to match", tc.name)
		Expect(regex.Name).To(Equal(tc.regex), "Wrong regex for %s", tc.name)
		Expect(code).To(Equal(tc.code), "Wrong code for %s", tc.name)
	}
}

func TestMatcherNoMatch(t *testing.T) {
	RegisterTestingT(t)

	m := NewMatcher(nil)
	for _, name := range []string{
		"readme.txt",
		"cover.jpg",
		"Show.Name.1080p.mkv",
		"Show.Name.x264.mkv",
	} {
		_, _, ok := m.Match(name)
		Expect(ok).To(BeFalse(), "Expected %s not to match", name)
	}
}

func TestBareSplitIsConfigurable(t *testing.T) {
	RegisterTestingT(t)

	m := NewMatcher([]NameRegex{BareRegex(1)})
	code, _, ok := m.Match("ep102.mkv")
	Expect(ok).To(BeTrue())
	Expect(code).To(Equal(EpisodeCode{Season: 10, Episode: 2}))

	m = NewMatcher([]NameRegex{BareRegex(3)})
	code, _, ok = m.Match("Show.1001.mkv")
	Expect(ok).To(BeTrue())
	Expect(code).To(Equal(EpisodeCode{Season: 1, Episode: 1}))
}

func TestCustomPatternsReplaceDefaults(t *testing.T) {
	RegisterTestingT(t)

	regexes, err := CompilePatterns([]string{`part\.(?P<episode>\d+)`})
	Expect(err).ToNot(HaveOccurred())
	m := NewMatcher(regexes)

	code, regex, ok := m.Match("Show.PART.7.mkv")
	Expect(ok).To(BeTrue())
	Expect(regex.Name).To(Equal("custom_1"))
	Expect(code).To(Equal(EpisodeCode{Season: NoSeason, Episode: 7}))
	Expect(code.HasSeason()).To(BeFalse())

	// Defaults are no longer consulted.
	_, _, ok = m.Match("Show.S01E02.mkv")
	Expect(ok).To(BeFalse())
}

func TestCustomPatternFallsThroughOnBadNumber(t *testing.T) {
	RegisterTestingT(t)

	regexes, err := CompilePatterns([]string{
		`ep(?P<season>\w+)-(?P<episode>\w+)`,
		`(?P<season_num>\d+)-(?P<ep_num>\d+)`,
	})
	Expect(err).ToNot(HaveOccurred())
	m := NewMatcher(regexes)

	code, regex, ok := m.Match("epAB-CD 3-4.mkv")
	Expect(ok).To(BeTrue())
	Expect(regex.Name).To(Equal("custom_2"))
	Expect(code).To(Equal(EpisodeCode{Season: 3, Episode: 4}))
}

func TestCompilePatternsErrors(t *testing.T) {
	RegisterTestingT(t)

	_, err := CompilePatterns([]string{`(?P<season>\d+`})
	Expect(err).To(HaveOccurred())

	_, err = CompilePatterns([]string{`(?P<season>\d+)x(\d+)`})
	Expect(err).To(MatchError(ContainSubstring("no (?P<episode>...) group")))
}

func TestEpisodeCodeString(t *testing.T) {
	RegisterTestingT(t)

	Expect(EpisodeCode{1, 2}.String()).To(Equal("S01E02"))
	Expect(EpisodeCode{12, 104}.String()).To(Equal("S12E104"))
	Expect(EpisodeCode{NoSeason, 7}.String()).To(Equal("E07"))
}

func TestSanitizeFilename(t *testing.T) {
	RegisterTestingT(t)

	tests := map[string]string{
		"Pilot":                 "Pilot",
		"Part 1: The Beginning": "Part 1 - The Beginning",
		"What?":                 "What",
		"AC/DC":                 "AC-DC",
		"  lots   of  space  ":  "lots of space",
		"Ends with dots...":     "Ends with dots",
	}
	for in, want := range tests {
		Expect(SanitizeFilename(in)).To(Equal(want), "sanitizing %q", in)
	}
}

func TestFormatter(t *testing.T) {
	RegisterTestingT(t)

	f, err := NewFormatter("")
	Expect(err).ToNot(HaveOccurred())

	name, err := f.Format("Show", EpisodeCode{1, 2}, "Pilot", ".mkv")
	Expect(err).ToNot(HaveOccurred())
	Expect(name).To(Equal("Show - S01E02 - Pilot.mkv"))

	name, err = f.Format("Show: Reloaded", EpisodeCode{NoSeason, 12}, "Who/What?", ".avi")
	Expect(err).ToNot(HaveOccurred())
	Expect(name).To(Equal("Show - Reloaded - E12 - Who-What.avi"))

	f, err = NewFormatter(`{{.Show}}.{{.Season}}x{{pad .Episode}}.{{.Title}}`)
	Expect(err).ToNot(HaveOccurred())
	name, err = f.Format("Show", EpisodeCode{3, 4}, "Title", ".mp4")
	Expect(err).ToNot(HaveOccurred())
	Expect(name).To(Equal("Show.3x04.Title.mp4"))

	_, err = NewFormatter("{{.Show")
	Expect(err).To(HaveOccurred())

	f, err = NewFormatter("{{.Missing}}")
	Expect(err).ToNot(HaveOccurred())
	_, err = f.Format("Show", EpisodeCode{1, 1}, "x", ".mkv")
	Expect(err).To(HaveOccurred())
}
