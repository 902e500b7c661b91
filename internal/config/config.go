// ABOUTME: Line-oriented configuration file loading and defaults
// ABOUTME: One directive per line; feed lines carry period, URL, and opaque args

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// FeedConfig is one "feed" line: the polling period, the feed URL, and any
// trailing key=value arguments passed through to the fetcher.
type FeedConfig struct {
	URL    string
	Period time.Duration
	Args   map[string]string
}

// Config holds the aggregator configuration. Periods and ages are given in
// minutes in the config file.
type Config struct {
	Feeds []FeedConfig

	StateFile  string
	OutputFile string

	MaxArticles int
	MaxAge      time.Duration
	ExpireAge   time.Duration

	DayFormat  string
	TimeFormat string

	DaySections    bool
	TimeSections   bool
	SortByFeedDate bool
	HideDuplicates []string

	UseRefresh bool
	ShowFeeds  bool

	Template     string
	ItemTemplate string

	Timeout   time.Duration
	UserAgent string
}

// Default returns the configuration used before any file is read.
func Default() *Config {
	return &Config{
		StateFile:    "state",
		OutputFile:   "output.html",
		MaxArticles:  200,
		ExpireAge:    24 * time.Hour,
		DayFormat:    "Monday, 02 January 2006",
		TimeFormat:   "15:04",
		DaySections:  true,
		TimeSections: true,
		ShowFeeds:    true,
		Timeout:      30 * time.Second,
		UserAgent:    "gather/" + Version,
	}
}

// Version is the aggregator version reported in the user agent and output
// footer.
const Version = "1.0.0"

// Load reads a config file over the defaults. Any malformed or unreadable
// config is a fatal error naming the line number; a file that simply does
// not exist yet yields the defaults, so first runs and the add/import
// commands work before any config has been written.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		if err := cfg.loadLine(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadLine(line string) error {
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	fields := strings.Fields(line)
	directive, rest := fields[0], fields[1:]

	switch directive {
	case "feed":
		if len(rest) < 2 {
			return fmt.Errorf("feed needs a period and a URL")
		}
		period, err := minutes(rest[0])
		if err != nil {
			return fmt.Errorf("bad feed period %q: %w", rest[0], err)
		}
		args := make(map[string]string)
		for _, arg := range rest[2:] {
			key, value, found := strings.Cut(arg, "=")
			if !found {
				return fmt.Errorf("bad feed argument %q (want key=value)", arg)
			}
			args[key] = value
		}
		c.Feeds = append(c.Feeds, FeedConfig{URL: rest[1], Period: period, Args: args})
	case "statefile":
		return c.setString(&c.StateFile, directive, rest)
	case "outputfile":
		return c.setString(&c.OutputFile, directive, rest)
	case "template":
		return c.setString(&c.Template, directive, rest)
	case "itemtemplate":
		return c.setString(&c.ItemTemplate, directive, rest)
	case "useragent":
		return c.setString(&c.UserAgent, directive, rest)
	case "maxarticles":
		return c.setInt(&c.MaxArticles, directive, rest)
	case "maxage":
		return c.setDuration(&c.MaxAge, directive, rest)
	case "expireage":
		return c.setDuration(&c.ExpireAge, directive, rest)
	case "timeout":
		if len(rest) != 1 {
			return fmt.Errorf("%s needs one value", directive)
		}
		secs, err := strconv.Atoi(rest[0])
		if err != nil || secs < 0 {
			return fmt.Errorf("bad %s value %q", directive, rest[0])
		}
		c.Timeout = time.Duration(secs) * time.Second
	case "dayformat":
		c.DayFormat = strings.TrimSpace(strings.TrimPrefix(line, directive))
	case "timeformat":
		c.TimeFormat = strings.TrimSpace(strings.TrimPrefix(line, directive))
	case "daysections":
		return c.setBool(&c.DaySections, directive, rest)
	case "timesections":
		return c.setBool(&c.TimeSections, directive, rest)
	case "sortbyfeeddate":
		return c.setBool(&c.SortByFeedDate, directive, rest)
	case "userefresh":
		return c.setBool(&c.UseRefresh, directive, rest)
	case "showfeeds":
		return c.setBool(&c.ShowFeeds, directive, rest)
	case "hideduplicates":
		for _, key := range rest {
			if key != "id" && key != "link" {
				return fmt.Errorf("unknown hideduplicates key %q", key)
			}
		}
		c.HideDuplicates = rest
	default:
		return fmt.Errorf("unknown config directive %q", directive)
	}
	return nil
}

func (c *Config) setString(dst *string, directive string, rest []string) error {
	if len(rest) != 1 {
		return fmt.Errorf("%s needs one value", directive)
	}
	*dst = rest[0]
	return nil
}

func (c *Config) setInt(dst *int, directive string, rest []string) error {
	if len(rest) != 1 {
		return fmt.Errorf("%s needs one value", directive)
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil || n < 0 {
		return fmt.Errorf("bad %s value %q", directive, rest[0])
	}
	*dst = n
	return nil
}

func (c *Config) setDuration(dst *time.Duration, directive string, rest []string) error {
	if len(rest) != 1 {
		return fmt.Errorf("%s needs one value", directive)
	}
	d, err := minutes(rest[0])
	if err != nil {
		return fmt.Errorf("bad %s value %q: %w", directive, rest[0], err)
	}
	*dst = d
	return nil
}

func (c *Config) setBool(dst *bool, directive string, rest []string) error {
	if len(rest) != 1 || (rest[0] != "true" && rest[0] != "false") {
		return fmt.Errorf("%s needs true or false", directive)
	}
	*dst = rest[0] == "true"
	return nil
}

// minutes parses a non-negative integer minute count into a duration.
func minutes(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a whole number of minutes")
	}
	if n < 0 {
		return 0, fmt.Errorf("negative period")
	}
	return time.Duration(n) * time.Minute, nil
}

// AppendFeed appends a feed line to the config file, used by the add and
// import commands.
func AppendFeed(path string, periodMinutes int, url string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open config file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "feed %d %s\n", periodMinutes, url); err != nil {
		return fmt.Errorf("cannot append to config file %s: %w", path, err)
	}
	return nil
}
