package naming

import (
	"fmt"
	"regexp"
)

// Capture group names a NameRegex uses to designate the season and episode.
// The SickRage style season_num and ep_num are accepted too.
const (
	SeasonGroup  = "season"
	EpisodeGroup = "episode"
)

// DefaultBareEpisodeDigits is how many trailing digits of a bare number
// are taken as the episode: 102 is season 1, episode 02.
const DefaultBareEpisodeDigits = 2

// TestString is an example filename that documents what a NameRegex
// matches.
type TestString struct {
	String      string
	ShouldMatch bool
	Code        EpisodeCode
}

// NameRegex is a named regular expression with season and episode capture
// groups.
type NameRegex struct {
	Name        string
	TestStrings []TestString
	Regex       *regexp.Regexp
}

// StandardRegex matches S01E02 style codes.
var StandardRegex = NameRegex{
	Name: "standard",
	TestStrings: []TestString{
		{String: "Show.Name.S01E02.Source.Quality.Etc-Group", ShouldMatch: true, Code: EpisodeCode{1, 2}},
		{String: "Show Name - S01E02 - My Ep Name", ShouldMatch: true, Code: EpisodeCode{1, 2}},
		{String: "Show.Name.S01.E03.My.Ep.Name", ShouldMatch: true, Code: EpisodeCode{1, 3}},
		{String: "show_name_s1e10", ShouldMatch: true, Code: EpisodeCode{1, 10}},
		{String: "Show.Name.1x02", ShouldMatch: false},
	},
	Regex: regexp.MustCompile(`(?i)(?:^|[^a-z])` +
		`s(?P<season>\d+)[. _-]*` + // S01 and optional separator
		`e(?P<episode>\d+)`), // E02
}

// FovRegex matches 1x02 style codes.
var FovRegex = NameRegex{
	Name: "fov",
	TestStrings: []TestString{
		{String: "Show_Name.1x02.Source_Quality_Etc-Group", ShouldMatch: true, Code: EpisodeCode{1, 2}},
		{String: "Show Name - 1x02 - My Ep Name", ShouldMatch: true, Code: EpisodeCode{1, 2}},
		{String: "ep1x02", ShouldMatch: true, Code: EpisodeCode{1, 2}},
		{String: "Show.Name.10X12", ShouldMatch: true, Code: EpisodeCode{10, 12}},
		{String: "Show.Name.1920x1080", ShouldMatch: false},
	},
	Regex: regexp.MustCompile(`(?i)(?:^|[^0-9])` +
		`(?P<season>\d{1,2})x` + // 1x
		`(?P<episode>\d{1,3})` + // 02
		`(?:[^0-9]|$)`),
}

// BareRegex returns the fallback regex for a run of digits where the last
// episodeDigits digits are the episode and the one or two digits before them
// the season.  The split is a heuristic: 1012 may as well be season 101,
// episode 2, so it is only tried after every delimited form.
func BareRegex(episodeDigits int) NameRegex {
	if episodeDigits < 1 {
		episodeDigits = DefaultBareEpisodeDigits
	}
	return NameRegex{
		Name: "bare",
		TestStrings: []TestString{
			{String: "Show.Name.102.Source.Quality.Etc-Group", ShouldMatch: true, Code: EpisodeCode{1, 2}},
			{String: "ep102", ShouldMatch: true, Code: EpisodeCode{1, 2}},
			{String: "Show Name 1012", ShouldMatch: true, Code: EpisodeCode{10, 12}},
			{String: "Show.Name.720p.x264", ShouldMatch: false},
		},
		Regex: regexp.MustCompile(fmt.Sprintf(`(?i)(?:^|[^0-9xh])`+
			`(?P<season>\d{1,2})`+
			`(?P<episode>\d{%d})`+
			`(?:[^0-9pi]|$)`, episodeDigits)),
	}
}

// DefaultRegexes returns the built in regexes in the order they are tried.
func DefaultRegexes(bareEpisodeDigits int) []NameRegex {
	return []NameRegex{
		StandardRegex,
		FovRegex,
		BareRegex(bareEpisodeDigits),
	}
}

// CompilePatterns turns user supplied expressions into NameRegexes.  Each
// expression is matched case insensitively and must have an episode group; a
// season group is optional.
func CompilePatterns(exprs []string) ([]NameRegex, error) {
	regexes := make([]NameRegex, 0, len(exprs))
	for i, expr := range exprs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
		}
		if re.SubexpIndex(EpisodeGroup) < 0 && re.SubexpIndex("ep_num") < 0 {
			return nil, fmt.Errorf("pattern %q has no (?P<%s>...) group", expr, EpisodeGroup)
		}
		regexes = append(regexes, NameRegex{
			Name:  fmt.Sprintf("custom_%d", i+1),
			Regex: re,
		})
	}
	return regexes, nil
}
