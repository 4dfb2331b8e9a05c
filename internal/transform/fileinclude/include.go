// Package fileinclude expands include directives in HTML sources.
//
// A directive is the configured prefix followed by include and a quoted path,
// with an optional JSON object of variables:
//
//	@include("partials/header.html", {"title": "Home"})
//
// Inside the included file, @title is replaced by "Home". Paths are relative
// to the including file. Markdown partials (.md) are rendered to HTML.
package fileinclude

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var ErrTooDeep = errors.New("include nesting too deep")

const DefaultMaxDepth = 5

var windowCRregexp = regexp.MustCompile(`\r?\n`)

type Expander struct {
	prefix    string
	maxDepth  int
	directive *regexp.Regexp
	markdown  goldmark.Markdown
}

// New returns an expander recognising prefix+"include". An empty prefix means "@".
func New(prefix string) *Expander {
	if prefix == "" {
		prefix = "@"
	}
	directive := regexp.MustCompile(regexp.QuoteMeta(prefix) +
		`include\(\s*(?:'([^']+)'|"([^"]+)")\s*(?:,\s*(\{[\s\S]*?\})\s*)?\)`)

	return &Expander{
		prefix:    prefix,
		maxDepth:  DefaultMaxDepth,
		directive: directive,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// ExpandFile reads path and expands every directive in it.
func (e *Expander) ExpandFile(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.Expand(src, filepath.Dir(path))
}

// Expand expands the directives of src, resolving paths against dir.
func (e *Expander) Expand(src []byte, dir string) ([]byte, error) {
	return e.expand(src, dir, nil, 0)
}

func (e *Expander) expand(src []byte, dir string, vars map[string]string, depth int) ([]byte, error) {
	if depth > e.maxDepth {
		return nil, fmt.Errorf("%w: reached max depth of %d, include loop ?", ErrTooDeep, e.maxDepth)
	}

	src = windowCRregexp.ReplaceAll(src, []byte("\n"))

	var firstErr error
	out := e.directive.ReplaceAllFunc(src, func(match []byte) []byte {
		if firstErr != nil {
			return match
		}
		sub := e.directive.FindSubmatch(match)
		rel := sub[1]
		if len(rel) == 0 {
			rel = sub[2]
		}
		c, err := e.include(string(rel), sub[3], dir, vars, depth)
		if err != nil {
			firstErr = err
			return match
		}
		return c
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (e *Expander) include(rel string, rawVars []byte, dir string, inherited map[string]string, depth int) ([]byte, error) {
	p := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(rel, "/")))

	vars := make(map[string]string, len(inherited))
	for k, v := range inherited {
		vars[k] = v
	}
	if len(rawVars) > 0 {
		local := map[string]interface{}{}
		if err := json.Unmarshal(rawVars, &local); err != nil {
			return nil, fmt.Errorf("include %s: bad variables: %w", rel, err)
		}
		flatten("", local, vars)
	}

	c, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("include %s: %w", rel, err)
	}

	c = e.substitute(c, vars)

	c, err = e.expand(c, filepath.Dir(p), vars, depth+1)
	if err != nil {
		return nil, fmt.Errorf("include %s: %w", rel, err)
	}

	if strings.EqualFold(filepath.Ext(p), ".md") {
		var buf bytes.Buffer
		if err := e.markdown.Convert(c, &buf); err != nil {
			return nil, fmt.Errorf("include %s: markdown: %w", rel, err)
		}
		c = buf.Bytes()
	}

	return bytes.TrimRight(c, "\n"), nil
}

// substitute replaces prefix+key by its value, longest keys first so that
// @title does not eat into @titleSuffix.
func (e *Expander) substitute(c []byte, vars map[string]string) []byte {
	if len(vars) == 0 {
		return c
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		c = bytes.ReplaceAll(c, []byte(e.prefix+k), []byte(vars[k]))
	}
	return c
}

func flatten(prefix string, in map[string]interface{}, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
			out[key] = ""
		default:
			b, _ := json.Marshal(val)
			out[key] = string(b)
		}
	}
}
