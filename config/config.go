package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/hobeone/epnamer/naming"
	"github.com/hobeone/epnamer/undo"
)

// DefaultPath is where the config file is read from unless told otherwise.
const DefaultPath = "~/.config/epnamer/config.json"

//Config is the base struct for epnamer configuration information.
type Config struct {
	Guide     guideConfig
	DB        dbConfig
	Naming    namingConfig
	Undo      undoConfig
	WebServer webConfig
}

type guideConfig struct {
	Indexer       string   // tvmaze or static
	GuideFile     string   // JSON guides served by the static indexer
	URL           string   // API base url, empty for the indexer's default
	Timeout       duration // per request
	CacheTTL      duration // 0 disables the guide cache
	MinSimilarity float32  // how close a search hit must be to the show name
}

type dbConfig struct {
	Path    string
	Verbose bool   // turn on verbose db logging
	Type    string // file or memory (for testing)
}

type namingConfig struct {
	Template          string   // text/template for new names
	Patterns          []string // replace the built in episode patterns
	BareEpisodeDigits int      // trailing digits of "102" style numbers that are the episode
	MediaOnly         bool     // only consider known video files
}

type undoConfig struct {
	Script string // path of the undo script, empty to skip writing one
	Format string // sh or bat, empty for the platform default
}

type webConfig struct {
	ListenAddress string // eg localhost:7000 or 0.0.0.0:8000
}

// duration reads "90s" style strings from JSON.
type duration struct {
	time.Duration
}

func (d duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration should be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// NewConfig returns a Config struct with reasonable defaults set.
func NewConfig() *Config {
	return &Config{
		Guide: guideConfig{
			Indexer:       "tvmaze",
			Timeout:       duration{30 * time.Second},
			CacheTTL:      duration{24 * time.Hour},
			MinSimilarity: 0.7,
		},
		DB: dbConfig{
			Path:    replaceTildeInPath("~/.config/epnamer/epnamer.db"),
			Verbose: false,
			Type:    "file",
		},
		Naming: namingConfig{
			Template:          naming.DefaultTemplate,
			BareEpisodeDigits: naming.DefaultBareEpisodeDigits,
		},
		Undo: undoConfig{
			Format: undo.DefaultFormat().String(),
		},
		WebServer: webConfig{
			ListenAddress: "localhost:7000",
		},
	}
}

//NewTestConfig returns a Config instance suitable for use in testing.
func NewTestConfig() *Config {
	c := NewConfig()
	c.DB.Type = "memory"
	c.DB.Verbose = false
	return c
}

func replaceTildeInPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	return strings.Replace(path, "~", usr.HomeDir, 1)
}

// ReadConfig decodes a json config file over the current values.
func (c *Config) ReadConfig(configPath string) error {
	absConfigPath, err := filepath.Abs(replaceTildeInPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to expand absolute path for %s", configPath)
	}

	var f *os.File
	if f, err = os.Open(absConfigPath); err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	filecont, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %v", f.Name(), err)
	}

	if err = json.Unmarshal(filecont, c); err != nil {
		extra := ""
		if serr, ok := err.(*json.SyntaxError); ok {
			line, col, highlight := highlightBytePosition(bytes.NewReader(filecont), serr.Offset)
			extra = fmt.Sprintf(":\nError at line %d, column %d (file offset %d):\n%s",
				line, col, serr.Offset, highlight)
		}
		return fmt.Errorf("error parsing JSON object in config file %s%s\n%v",
			f.Name(), extra, err)
	}

	c.DB.Path = replaceTildeInPath(c.DB.Path)
	c.Undo.Script = replaceTildeInPath(c.Undo.Script)
	c.Guide.GuideFile = replaceTildeInPath(c.Guide.GuideFile)

	return c.Validate()
}

// Validate checks values that can't be caught while decoding.
func (c *Config) Validate() error {
	switch c.Guide.Indexer {
	case "tvmaze":
	case "static":
		if c.Guide.GuideFile == "" {
			return fmt.Errorf("Guide.GuideFile must be set for the static indexer")
		}
	default:
		return fmt.Errorf("unknown Guide.Indexer %q, must be tvmaze or static", c.Guide.Indexer)
	}
	switch c.DB.Type {
	case "file", "memory":
	default:
		return fmt.Errorf("unknown DB.Type %q, must be file or memory", c.DB.Type)
	}
	if c.DB.Type == "file" && c.DB.Path == "" {
		return fmt.Errorf("DB.Path must be set for file databases")
	}
	if c.Naming.BareEpisodeDigits < 1 || c.Naming.BareEpisodeDigits > 3 {
		return fmt.Errorf("Naming.BareEpisodeDigits must be between 1 and 3, got %d", c.Naming.BareEpisodeDigits)
	}
	if c.Guide.MinSimilarity < 0 || c.Guide.MinSimilarity > 1 {
		return fmt.Errorf("Guide.MinSimilarity must be between 0 and 1, got %v", c.Guide.MinSimilarity)
	}
	if _, err := undo.FormatFromString(c.Undo.Format); err != nil {
		return err
	}
	if len(c.Naming.Patterns) > 0 {
		if _, err := naming.CompilePatterns(c.Naming.Patterns); err != nil {
			return err
		}
	}
	if _, err := naming.NewFormatter(c.Naming.Template); err != nil {
		return err
	}
	return nil
}

// HighlightBytePosition takes a reader and the location in bytes of a parse
// error (for instance, from json.SyntaxError.Offset) and returns the line, column,
// and pretty-printed context around the error with an arrow indicating the exact
// position of the syntax error.
//
// Lifted from camlistore
func highlightBytePosition(f io.Reader, pos int64) (line, col int, highlight string) {
	line = 1
	br := bufio.NewReader(f)
	lastLine := ""
	thisLine := new(bytes.Buffer)
	for n := int64(0); n < pos; n++ {
		b, err := br.ReadByte()
		if err != nil {
			break
		}
		if b == '\n' {
			lastLine = thisLine.String()
			thisLine.Reset()
			line++
			col = 1
		} else {
			col++
			thisLine.WriteByte(b)
		}
	}
	if line > 1 {
		highlight += fmt.Sprintf("%5d: %s\n", line-1, lastLine)
	}
	highlight += fmt.Sprintf("%5d: %s\n", line, thisLine.String())
	highlight += fmt.Sprintf("%s^\n", strings.Repeat(" ", col+5))
	return
}
