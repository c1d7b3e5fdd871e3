package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

var (
	mediaExtensions = []string{
		"avi", "mkv", "mpg", "mpeg", "wmv",
		"ogm", "mp4", "iso", "img", "divx",
		"m2ts", "m4v", "ts", "flv", "f4v",
		"mov", "rmvb", "vob", "dvr-ms", "wtv",
		"ogv", "3gp", "webm",
	}

	sampleRegex = regexp.MustCompile(`(?i)(^|[\W_])(sample\d*)[\W_]`)
	extrasRegex = regexp.MustCompile(`(?i)extras?$`)
)

// IsMediaExtension checks if the given string matches a known Media file
// extension.
func IsMediaExtension(extension string) bool {
	extension = strings.TrimLeft(extension, ".")
	extension = strings.ToLower(extension)
	for _, ext := range mediaExtensions {
		if ext == extension {
			return true
		}
	}
	return false
}

// IsMediaFile checks if the given string is a media file
func IsMediaFile(filename string) bool {
	filename = filepath.Base(filename)
	// ignore samples
	if sampleRegex.MatchString(filename) {
		return false
	}
	// ignore Mac resource fork files
	if strings.HasPrefix(filename, "._") {
		return false
	}

	name, extension := SplitExt(filename)
	if extrasRegex.MatchString(name) {
		return false
	}

	return IsMediaExtension(extension)
}

// SplitExt splits a base name into its stem and extension.  An all numeric
// "extension" is part of the name ("Show.Name.102" has no extension).
func SplitExt(fname string) (string, string) {
	extension := filepath.Ext(fname)
	if extension == "." || isDigits(extension[min(1, len(extension)):]) {
		return fname, ""
	}
	return fname[0 : len(fname)-len(extension)], extension
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NoSeason marks an EpisodeCode for a show that numbers its episodes
// continuously.
const NoSeason = -1

// EpisodeCode is the season/episode pair extracted from a filename.
type EpisodeCode struct {
	Season  int
	Episode int
}

// HasSeason reports if the code carries a season number.
func (c EpisodeCode) HasSeason() bool {
	return c.Season != NoSeason
}

// String renders the code as S01E02, or E02 without a season.
func (c EpisodeCode) String() string {
	if !c.HasSeason() {
		return fmt.Sprintf("E%02d", c.Episode)
	}
	return fmt.Sprintf("S%02dE%02d", c.Season, c.Episode)
}

// Return named matches in a map
func regexNamedMatch(re *regexp.Regexp, str string) (map[string]string, bool) {
	res := re.FindStringSubmatch(str)
	if res == nil {
		return nil, false
	}

	result := make(map[string]string, len(re.SubexpNames()))
	for i, name := range re.SubexpNames() {
		if name != "" && res[i] != "" {
			result[name] = res[i]
		}
	}

	return result, true
}

func firstGroup(matches map[string]string, names ...string) (string, bool) {
	for _, n := range names {
		if m, ok := matches[n]; ok {
			return m, true
		}
	}
	return "", false
}

func parseNumber(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Matcher extracts EpisodeCodes from filenames using an ordered list of
// NameRegexes.  The first regex that matches wins.
type Matcher struct {
	Regexes []NameRegex
}

// NewMatcher returns a Matcher trying regexes in the given order.  An empty
// list means DefaultRegexes.
func NewMatcher(regexes []NameRegex) *Matcher {
	if len(regexes) == 0 {
		regexes = DefaultRegexes(DefaultBareEpisodeDigits)
	}
	return &Matcher{Regexes: regexes}
}

// Match returns the EpisodeCode of the first regex matching the base name of
// path (extension removed) along with the regex that produced it.
func (m *Matcher) Match(path string) (EpisodeCode, *NameRegex, bool) {
	name, _ := SplitExt(filepath.Base(path))
	for i := range m.Regexes {
		r := &m.Regexes[i]
		code, ok := r.extract(name)
		if ok {
			glog.V(2).Infof("Matched %s to %s with the %s regex", name, code, r.Name)
			return code, r, true
		}
	}
	glog.V(2).Infof("No episode code found in %s", name)
	return EpisodeCode{}, nil, false
}

func (r *NameRegex) extract(name string) (EpisodeCode, bool) {
	matches, ok := regexNamedMatch(r.Regex, name)
	if !ok {
		return EpisodeCode{}, false
	}
	code := EpisodeCode{Season: NoSeason}

	ep, ok := firstGroup(matches, EpisodeGroup, "ep_num")
	if !ok {
		return EpisodeCode{}, false
	}
	en, err := parseNumber(ep)
	if err != nil {
		glog.V(2).Infof("Error converting episode %q to int from %s: %s", ep, name, err)
		return EpisodeCode{}, false
	}
	code.Episode = en

	if season, ok := firstGroup(matches, SeasonGroup, "season_num"); ok {
		sn, err := parseNumber(season)
		if err != nil {
			glog.V(2).Infof("Error converting season %q to int from %s: %s", season, name, err)
			return EpisodeCode{}, false
		}
		code.Season = sn
	}
	return code, true
}
