package naming

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DefaultTemplate renders "Show - S01E02 - Title".
const DefaultTemplate = `{{.Show}} - {{.Code}} - {{.Title}}`

var invalidChars = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", " -",
	"*", "",
	"?", "",
	"\"", "'",
	"<", "",
	">", "",
	"|", "-",
	"\x00", "",
)

// SanitizeFilename removes or replaces characters that are invalid in file
// names on common filesystems.
func SanitizeFilename(name string) string {
	result := invalidChars.Replace(name)
	result = strings.Join(strings.Fields(result), " ")
	// Windows refuses names ending in a dot or space.
	return strings.Trim(result, " .")
}

// EpisodeName holds the values a naming template can use.
type EpisodeName struct {
	Show    string
	Title   string
	Season  int
	Episode int
	Code    EpisodeCode
}

// Formatter renders destination file names from a text/template.
type Formatter struct {
	tpl *template.Template
}

// NewFormatter parses the given template.  An empty string selects
// DefaultTemplate.
func NewFormatter(text string) (*Formatter, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tpl, err := template.New("episode").Funcs(template.FuncMap{
		"pad": func(n int) string { return fmt.Sprintf("%02d", n) },
	}).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid naming template %q: %w", text, err)
	}
	return &Formatter{tpl: tpl}, nil
}

// Format returns the file name (without directory) for an episode.  ext is
// appended unchanged so the original extension is preserved.
func (f *Formatter) Format(show string, code EpisodeCode, title, ext string) (string, error) {
	data := EpisodeName{
		Show:    SanitizeFilename(show),
		Title:   SanitizeFilename(title),
		Season:  code.Season,
		Episode: code.Episode,
		Code:    code,
	}
	var buf bytes.Buffer
	if err := f.tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error rendering name for %s: %w", code, err)
	}
	name := SanitizeFilename(buf.String())
	if name == "" {
		return "", fmt.Errorf("naming template rendered an empty name for %s", code)
	}
	return name + ext, nil
}
