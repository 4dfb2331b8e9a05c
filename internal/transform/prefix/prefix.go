// Package prefix adds vendor-prefixed declarations to compiled style sheets.
//
// The rule table targets a "last N versions" browser range: with N of 4 or
// more the legacy IE/Opera/old WebKit forms are emitted too. Grid prefixing
// (-ms-grid) is optional.
package prefix

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type Prefixer struct {
	grid   bool
	legacy bool
}

var lastVersionsRegexp = regexp.MustCompile(`(?i)last\s+(\d+)\s+versions?`)

// New builds a prefixer for the given browser queries.
func New(browsers []string, grid bool) *Prefixer {
	p := &Prefixer{grid: grid}
	for _, b := range browsers {
		m := lastVersionsRegexp.FindStringSubmatch(b)
		if m == nil {
			continue
		}
		if n, _ := strconv.Atoi(m[1]); n >= 4 {
			p.legacy = true
		}
	}
	return p
}

type decl struct {
	prop  string
	value string
}

type keyframes struct {
	start int
	depth int
}

// Prefix re-emits src with prefixed declarations inserted before the
// standard ones. Declarations already present in a block are not duplicated.
// Whitespace inside values is normalized the way the tokenizer reports it:
// "1 / 3" becomes "1/3", descendant combinators keep their space.
func (p *Prefixer) Prefix(src []byte) ([]byte, error) {
	var (
		out      bytes.Buffer
		depth    int
		selector strings.Builder
		decls    []decl
		frames   []keyframes
	)

	indent := func() {
		out.WriteString(strings.Repeat("  ", depth))
	}
	flush := func() {
		for _, d := range p.expand(decls) {
			indent()
			out.WriteString(d.prop)
			out.WriteString(": ")
			out.WriteString(d.value)
			out.WriteString(";\n")
		}
		decls = decls[:0]
	}

	// the parser lowercases at-rule names in place
	parser := css.NewParser(parse.NewInputBytes(append([]byte(nil), src...)), false)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if parser.Err() == io.EOF {
				flush()
				return out.Bytes(), nil
			}
			return nil, parser.Err()
		case css.CommentGrammar:
			flush()
			indent()
			out.Write(data)
			out.WriteByte('\n')
		case css.AtRuleGrammar:
			flush()
			indent()
			out.Write(data)
			if v := join(parser.Values()); v != "" {
				out.WriteByte(' ')
				out.WriteString(v)
			}
			out.WriteString(";\n")
		case css.BeginAtRuleGrammar:
			flush()
			start := out.Len()
			name := join(parser.Values())
			indent()
			out.Write(data)
			if name != "" {
				out.WriteByte(' ')
				out.WriteString(name)
			}
			out.WriteString(" {\n")
			if p.legacy && string(data) == "@keyframes" && !bytes.Contains(src, []byte("@-webkit-keyframes "+name)) {
				frames = append(frames, keyframes{start: start, depth: depth})
			}
			depth++
		case css.QualifiedRuleGrammar:
			selector.WriteString(join(parser.Values()))
			selector.WriteString(", ")
		case css.BeginRulesetGrammar:
			flush()
			selector.WriteString(join(parser.Values()))
			indent()
			out.WriteString(selector.String())
			out.WriteString(" {\n")
			selector.Reset()
			depth++
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			decls = append(decls, decl{prop: string(data), value: join(parser.Values())})
		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			flush()
			if depth > 0 {
				depth--
			}
			indent()
			out.WriteString("}\n")

			if n := len(frames); n > 0 && frames[n-1].depth == depth {
				block := append([]byte(nil), out.Bytes()[frames[n-1].start:]...)
				out.Truncate(frames[n-1].start)
				out.Write(bytes.Replace(block, []byte("@keyframes"), []byte("@-webkit-keyframes"), 1))
				out.Write(block)
				frames = frames[:n-1]
			}
		}
	}
}

func join(tokens []css.Token) string {
	var sb strings.Builder
	for i, t := range tokens {
		sb.Write(t.Data)
		if t.TokenType == css.CommaToken && i+1 < len(tokens) && tokens[i+1].TokenType != css.WhitespaceToken {
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}

// expand returns the declarations with their prefixed variants in front.
func (p *Prefixer) expand(decls []decl) []decl {
	present := make(map[string]struct{}, len(decls))
	for _, d := range decls {
		present[d.prop+":"+d.value] = struct{}{}
		present[d.prop] = struct{}{}
	}

	out := make([]decl, 0, len(decls)*2)
	add := func(d decl) {
		if _, ok := present[d.prop+":"+d.value]; ok {
			return
		}
		// a prefixed property written by hand wins over the generated one
		if strings.HasPrefix(d.prop, "-") {
			if _, ok := present[d.prop]; ok {
				return
			}
		}
		present[d.prop+":"+d.value] = struct{}{}
		out = append(out, d)
	}

	for _, d := range decls {
		if strings.HasPrefix(d.prop, "-") {
			out = append(out, d)
			continue
		}
		for _, v := range p.variants(d) {
			add(v)
		}
		out = append(out, d)
	}
	return out
}

func (p *Prefixer) variants(d decl) []decl {
	prop := strings.ToLower(d.prop)
	value := strings.ToLower(d.value)

	var out []decl

	switch {
	case prop == "display":
		for _, v := range p.displayValues(value) {
			out = append(out, decl{prop: d.prop, value: v})
		}
		return out
	case prop == "position" && value == "sticky":
		return []decl{{prop: d.prop, value: "-webkit-sticky"}}
	case p.grid && strings.HasPrefix(prop, "grid"):
		return p.gridVariants(prop, d.value)
	}

	for _, pre := range p.prefixes(prop) {
		out = append(out, decl{prop: pre + d.prop, value: d.value})
	}
	return out
}

func (p *Prefixer) displayValues(value string) []string {
	switch value {
	case "flex":
		if p.legacy {
			return []string{"-webkit-box", "-webkit-flex", "-ms-flexbox"}
		}
		return []string{"-webkit-flex"}
	case "inline-flex":
		if p.legacy {
			return []string{"-webkit-inline-box", "-webkit-inline-flex", "-ms-inline-flexbox"}
		}
		return []string{"-webkit-inline-flex"}
	case "grid":
		if p.grid {
			return []string{"-ms-grid"}
		}
	case "inline-grid":
		if p.grid {
			return []string{"-ms-inline-grid"}
		}
	}
	return nil
}

func (p *Prefixer) gridVariants(prop, value string) []decl {
	switch prop {
	case "grid-template-columns":
		return []decl{{prop: "-ms-grid-columns", value: value}}
	case "grid-template-rows":
		return []decl{{prop: "-ms-grid-rows", value: value}}
	case "grid-column", "grid-row":
		axis := strings.TrimPrefix(prop, "grid-")
		start, span, ok := gridSpan(value)
		if !ok {
			return nil
		}
		out := []decl{{prop: "-ms-grid-" + axis, value: strconv.Itoa(start)}}
		if span > 1 {
			out = append(out, decl{prop: "-ms-grid-" + axis + "-span", value: strconv.Itoa(span)})
		}
		return out
	}
	return nil
}

// gridSpan reads "a / b" and "a / span n" line placements.
func gridSpan(value string) (start, span int, ok bool) {
	parts := strings.Split(value, "/")
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return start, 1, true
	}
	end := strings.TrimSpace(parts[1])
	if n, found := strings.CutPrefix(end, "span"); found {
		span, err = strconv.Atoi(strings.TrimSpace(n))
		return start, span, err == nil
	}
	stop, err := strconv.Atoi(end)
	if err != nil || stop <= start {
		return 0, 0, false
	}
	return start, stop - start, true
}

var webkitOnly = map[string]bool{
	"animation": true, "animation-name": true, "animation-duration": true,
	"animation-delay": true, "animation-timing-function": true,
	"animation-iteration-count": true, "animation-direction": true,
	"animation-fill-mode": true, "animation-play-state": true,
	"backface-visibility": true, "backdrop-filter": true, "box-decoration-break": true,
	"clip-path": true, "mask": true, "mask-image": true, "text-emphasis": true,
	"flex-grow": true, "flex-shrink": true, "flex-basis": true, "order": true,
	"align-items": true, "align-self": true, "align-content": true,
	"justify-content": true, "perspective": true, "text-decoration-skip": true,
}

var legacyOnly = map[string]bool{
	"filter": true, "box-shadow": true, "box-sizing": true, "column-count": true,
	"column-gap": true, "columns": true,
}

func (p *Prefixer) prefixes(prop string) []string {
	switch prop {
	case "transform", "transform-origin":
		if p.legacy {
			return []string{"-webkit-", "-ms-"}
		}
		return []string{"-webkit-"}
	case "transition", "transition-property", "transition-duration", "transition-timing-function", "transition-delay":
		if p.legacy {
			return []string{"-webkit-", "-o-"}
		}
		return []string{"-webkit-"}
	case "user-select":
		return []string{"-webkit-", "-moz-", "-ms-"}
	case "appearance":
		return []string{"-webkit-", "-moz-"}
	case "hyphens", "text-size-adjust":
		return []string{"-webkit-", "-ms-"}
	case "flex", "flex-direction", "flex-wrap", "flex-flow":
		if p.legacy {
			return []string{"-webkit-", "-ms-"}
		}
		return []string{"-webkit-"}
	}
	if webkitOnly[prop] {
		return []string{"-webkit-"}
	}
	if p.legacy && legacyOnly[prop] {
		return []string{"-webkit-"}
	}
	return nil
}
