// ABOUTME: Substitution template engine with placeholders and conditional blocks
// ABOUTME: Explicit loader with injectable cache for template file text

package render

import (
	"fmt"
	"os"
	"regexp"
)

// Template syntax: __name__ expands to the named value, or to the empty
// string when unset; an __if_name__ ... __endif__ block is kept only when
// the named value is present and non-empty. Conditional blocks do not
// nest.
var (
	conditionalPattern = regexp.MustCompile(`(?s)__if_([A-Za-z0-9_]+?)__(.*?)__endif__`)
	placeholderPattern = regexp.MustCompile(`__([A-Za-z0-9_]+?)__`)
)

// Expand substitutes values into a template. Conditionals are resolved
// before placeholders so their markers never survive into the output.
func Expand(template string, values map[string]string) string {
	out := conditionalPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := conditionalPattern.FindStringSubmatch(match)
		if values[groups[1]] == "" {
			return ""
		}
		return groups[2]
	})
	return placeholderPattern.ReplaceAllStringFunc(out, func(match string) string {
		return values[placeholderPattern.FindStringSubmatch(match)[1]]
	})
}

// Loader reads template files with a per-instance cache, so repeated
// renders in one invocation hit the disk once and tests stay independent
// of each other.
type Loader struct {
	cache map[string]string
}

// NewLoader creates a Loader with an empty cache.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string]string)}
}

// Load returns the template at path, or fallback when path is empty.
func (l *Loader) Load(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	if cached, ok := l.cache[path]; ok {
		return cached, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read template %s: %w", path, err)
	}
	l.cache[path] = string(data)
	return string(data), nil
}

// DefaultPageTemplate is the built-in document template used when no
// template file is configured.
const DefaultPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
__if_refresh__    <meta http-equiv="Refresh" content="__refresh__">
__endif__    <link rel="stylesheet" href="style.css" type="text/css">
    <title>gather</title>
</head>
<body id="gather">
<div id="header">
<h1>gather</h1>
</div>
<div id="items">
__items__</div>
__if_feeds__<h2 id="feedstatsheader">Feeds</h2>
<div id="feedstats">
__feeds__</div>
__endif__<div id="footer">
<p id="aboutgather">Generated by gather version __version__.</p>
</div>
</body>
</html>
`

// DefaultItemTemplate is the built-in per-article template.
const DefaultItemTemplate = `<div class="item">
<p class="itemheader">
<span class="itemtitle">__if_item_link__<a href="__item_link__">__endif____title____if_item_link__</a>__endif__</span>
<span class="itemfrom">[__feed_title__]</span>
</p>
__if_description__<div class="itemdescription"><p>__description__</p></div>
__endif__</div>
`
