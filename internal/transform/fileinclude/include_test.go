package fileinclude

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestExpandSimpleInclude(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "components/header.html", "<header>Site</header>\n")
	index := write(t, dir, "index.html", "<body>\n@include('components/header.html')\n<main></main>\n</body>\n")

	out, err := New("@").ExpandFile(index)
	require.NoError(t, err)
	assert.Equal(t, "<body>\n<header>Site</header>\n<main></main>\n</body>\n", string(out))
}

func TestExpandIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "components/nav.html", "<nav>@label</nav>")
	index := write(t, dir, "index.html", `@include("components/nav.html", {"label": "Menu"})`)

	e := New("@")
	first, err := e.ExpandFile(index)
	require.NoError(t, err)
	second, err := e.ExpandFile(index)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "<nav>Menu</nav>", string(first))
}

func TestVariablesAreScopedAndNested(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "parts/card.html", `<div class="@kind">@include("title.html")</div>`)
	write(t, dir, "parts/title.html", "<h2>@title / @titleSuffix / @meta.author / @count</h2>")
	index := write(t, dir, "page.html",
		`@include("parts/card.html", {"kind": "card", "title": "Hello", "titleSuffix": "World", "meta": {"author": "Ann"}, "count": 3})`)

	out, err := New("@").ExpandFile(index)
	require.NoError(t, err)
	assert.Equal(t, `<div class="card"><h2>Hello / World / Ann / 3</h2></div>`, string(out))
}

func TestTopLevelTextIsLeftAlone(t *testing.T) {
	dir := t.TempDir()
	index := write(t, dir, "index.html", "<style>@media print { a { color: red } }</style>\r\n")

	out, err := New("@").ExpandFile(index)
	require.NoError(t, err)
	assert.Equal(t, "<style>@media print { a { color: red } }</style>\n", string(out))
}

func TestCustomPrefix(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.html", "A")
	index := write(t, dir, "index.html", "@@include('a.html') @include('a.html')")

	out, err := New("@@").ExpandFile(index)
	require.NoError(t, err)
	// "@include" is not a directive under the "@@" prefix
	assert.Equal(t, "A @include('a.html')", string(out))
}

func TestMarkdownPartial(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "intro.md", "# @heading\n\nSome *text*.\n")
	index := write(t, dir, "index.html", `<article>@include("intro.md", {"heading": "Welcome"})</article>`)

	out, err := New("").ExpandFile(index)
	require.NoError(t, err)
	assert.Equal(t, "<article><h1>Welcome</h1>\n<p>Some <em>text</em>.</p></article>", string(out))
}

func TestMissingPartialFails(t *testing.T) {
	dir := t.TempDir()
	index := write(t, dir, "index.html", "@include('nope.html')")

	_, err := New("@").ExpandFile(index)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "nope.html")
}

func TestIncludeLoopIsStopped(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.html", "@include('b.html')")
	write(t, dir, "b.html", "@include('a.html')")
	index := write(t, dir, "index.html", "@include('a.html')")

	_, err := New("@").ExpandFile(index)
	require.ErrorIs(t, err, ErrTooDeep)
}

func TestBadVariablesFail(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.html", "A")
	index := write(t, dir, "index.html", `@include("a.html", {title: nope})`)

	_, err := New("@").ExpandFile(index)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad variables")
}

func TestMismatchedQuotesAreNotDirectives(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.html", "A")
	index := write(t, dir, "index.html", `@include('a.html") | @include("a.html')`+" | @include(\"a.html\")")

	out, err := New("@").ExpandFile(index)
	require.NoError(t, err)
	assert.Equal(t, `@include('a.html") | @include("a.html') | A`, string(out))
}
