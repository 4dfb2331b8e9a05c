package prefix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lastTen = []string{"last 10 versions"}

func TestPrefixTransition(t *testing.T) {
	out, err := New(lastTen, true).Prefix([]byte("a{transition:all 1s}"))
	require.NoError(t, err)
	assert.Equal(t, "a {\n  -webkit-transition: all 1s;\n  -o-transition: all 1s;\n  transition: all 1s;\n}\n", string(out))
}

func TestModernRangeSkipsLegacyForms(t *testing.T) {
	out, err := New([]string{"last 2 versions"}, false).Prefix([]byte(".row{display:flex;transform:scale(2)}"))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "display: -webkit-flex;")
	assert.NotContains(t, s, "-ms-flexbox")
	assert.Contains(t, s, "-webkit-transform: scale(2);")
	assert.NotContains(t, s, "-ms-transform")
	assert.Contains(t, s, "display: flex;")
}

func TestFlexAndGrid(t *testing.T) {
	src := `.layout {
  display: grid;
  grid-template-columns: 1fr 2fr;
  grid-column: 1 / 3;
  grid-row: 2 / span 2;
}
.row { display: flex; }`

	out, err := New(lastTen, true).Prefix([]byte(src))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "display: -ms-grid;\n  display: grid;")
	assert.Contains(t, s, "-ms-grid-columns: 1fr 2fr;\n  grid-template-columns: 1fr 2fr;")
	assert.Contains(t, s, "-ms-grid-column: 1;\n  -ms-grid-column-span: 2;\n  grid-column: 1/3;")
	assert.Contains(t, s, "-ms-grid-row: 2;\n  -ms-grid-row-span: 2;\n  grid-row: 2/span 2;")
	assert.Contains(t, s, "display: -webkit-box;\n  display: -webkit-flex;\n  display: -ms-flexbox;\n  display: flex;")
}

func TestGridDisabled(t *testing.T) {
	out, err := New(lastTen, false).Prefix([]byte(".g{display:grid;grid-template-rows:auto}"))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "-ms-grid")
}

func TestNestedAtRulesAndSelectorLists(t *testing.T) {
	src := "@charset \"utf-8\";\n@media (max-width: 600px) { h1, h2 { user-select: none } }"
	out, err := New(lastTen, true).Prefix([]byte(src))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "@charset \"utf-8\";\n")
	assert.Contains(t, s, "@media (max-width:600px) {\n  h1, h2 {\n")
	assert.Contains(t, s, "    -webkit-user-select: none;\n    -moz-user-select: none;\n    -ms-user-select: none;\n    user-select: none;\n  }\n}\n")
}

func TestSelectorCombinators(t *testing.T) {
	out, err := New(lastTen, true).Prefix([]byte(".nav .item a{color:red}\n.list > li,.list+p{color:blue}"))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, ".nav .item a {\n")
	assert.Contains(t, s, ".list>li, .list+p {\n")
}

func TestValueListsKeepCommaSpacing(t *testing.T) {
	out, err := New([]string{"last 2 versions"}, false).Prefix([]byte("a{transition:opacity .2s,color 1s;font:12px/1.5 Arial , sans-serif}"))
	require.NoError(t, err)
	assert.Equal(t, "a {\n  -webkit-transition: opacity .2s, color 1s;\n  transition: opacity .2s, color 1s;\n  font: 12px/1.5 Arial, sans-serif;\n}\n", string(out))
}

func TestKeyframesGetWebkitCopy(t *testing.T) {
	src := []byte("@keyframes spin{from{opacity:0}to{opacity:1}}")

	out, err := New(lastTen, true).Prefix(src)
	require.NoError(t, err)
	block := " spin {\n  from {\n    opacity: 0;\n  }\n  to {\n    opacity: 1;\n  }\n}\n"
	assert.Equal(t, "@-webkit-keyframes"+block+"@keyframes"+block, string(out))

	out, err = New([]string{"last 2 versions"}, true).Prefix(src)
	require.NoError(t, err)
	assert.Equal(t, "@keyframes"+block, string(out))
}

func TestHandWrittenWebkitKeyframesAreNotDuplicated(t *testing.T) {
	src := []byte("@-webkit-keyframes spin{to{opacity:1}}@keyframes spin{to{opacity:1}}")
	out, err := New(lastTen, true).Prefix(src)
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(string(out), "@-webkit-keyframes"))
}

func TestPrefixLeavesInputUntouched(t *testing.T) {
	src := []byte("@MEDIA print{a{color:red}}")
	_, err := New(lastTen, true).Prefix(src)
	require.NoError(t, err)
	assert.Equal(t, "@MEDIA print{a{color:red}}", string(src))
}

func TestExistingPrefixesAreKept(t *testing.T) {
	out, err := New(lastTen, true).Prefix([]byte("a{-webkit-transition:none;transition:all 1s;--gap:4px}"))
	require.NoError(t, err)

	s := string(out)
	assert.Equal(t, 1, countOf(s, "-webkit-transition"))
	assert.Contains(t, s, "-webkit-transition: none;")
	assert.Contains(t, s, "-o-transition: all 1s;")
	assert.Contains(t, s, "--gap: 4px;")
}

func TestUnprefixedPropertiesPassThrough(t *testing.T) {
	out, err := New(lastTen, true).Prefix([]byte("body{color:red;margin:0 auto}"))
	require.NoError(t, err)
	assert.Equal(t, "body {\n  color: red;\n  margin: 0 auto;\n}\n", string(out))
}

func TestPrefixIsDeterministic(t *testing.T) {
	src := []byte(".a{display:flex;transition:opacity .2s}.b{appearance:none}")
	p := New(lastTen, true)
	first, err := p.Prefix(src)
	require.NoError(t, err)
	second, err := p.Prefix(src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
