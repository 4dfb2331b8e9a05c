package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toastate/toastpipe/pkg/config"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, filepath.FromSlash(n))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(n), 0644))
	}
}

func TestNewValidatesEveryCategory(t *testing.T) {
	r, err := New(t.TempDir(), config.Default())
	require.NoError(t, err)

	for _, c := range Categories {
		spec := r.Spec(c)
		assert.NotEmpty(t, spec.Sources, c)
		assert.NotEmpty(t, spec.Dest, c)
	}
	assert.Equal(t, filepath.FromSlash("dist/image"), r.Spec(Images).Dest)
}

func TestNewRejectsBrokenEntries(t *testing.T) {
	tests := map[string]func(*config.Configuration){
		"missing category": func(c *config.Configuration) { delete(c.Paths, "fonts") },
		"no sources": func(c *config.Configuration) {
			pc := c.Paths["scripts"]
			pc.Src = nil
			c.Paths["scripts"] = pc
		},
		"no destination": func(c *config.Configuration) {
			pc := c.Paths["html"]
			pc.Dist = ""
			c.Paths["html"] = pc
		},
		"bad pattern": func(c *config.Configuration) {
			pc := c.Paths["video"]
			pc.Src = []string{"src/video/[*"}
			c.Paths["video"] = pc
		},
		"no output root": func(c *config.Configuration) { c.OutputRoot = "" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			_, err := New(".", cfg)
			require.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}

func TestPatternsFallsBackToSources(t *testing.T) {
	r, err := New(".", config.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"src/image/**/*.svg"}, r.Patterns(Images, SetSVG))
	assert.Equal(t, []string{"src/scripts/**/*.js"}, r.Patterns(Scripts, "missing"))
	assert.Equal(t, []string{"src/fonts/*.ttf"}, r.Patterns(Fonts, ""))

	spec := r.Spec(Styles)
	assert.Equal(t, []string{"src/style/*.scss"}, spec.Set(SetRoot))
	assert.Nil(t, spec.Set(SetSVG))

	// callers get a copy
	spec.Set(SetRoot)[0] = "changed"
	assert.Equal(t, []string{"src/style/*.scss"}, r.Patterns(Styles, SetRoot))
}

func TestPreserved(t *testing.T) {
	r, err := New(".", config.Default())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"image", "video"}, r.Preserved())
}

func TestMatchHonoursExclusions(t *testing.T) {
	raster := []string{"src/image/**/*", "!src/image/**/*.svg"}

	assert.True(t, Match(raster, "src/image/a.png"))
	assert.True(t, Match(raster, "src/image/icons/b.jpg"))
	assert.False(t, Match(raster, "src/image/icons/b.svg"))
	assert.False(t, Match(raster, "src/other/a.png"))

	assert.True(t, Match([]string{"src/image/**/*.{png,jpg,jpeg}"}, "src/image/x/photo.jpeg"))
	assert.True(t, Match([]string{"./src/*.html"}, "src/index.html"))
}

func TestGlobOrderAndBase(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"src/style/b.scss",
		"src/style/a.scss",
		"src/components/header/header.scss",
		"src/image/logo.png",
		"src/image/icons/arrow.svg",
		"src/image/icons/photo.jpg",
	)

	r, err := New(dir, config.Default())
	require.NoError(t, err)

	styles, err := r.Glob(r.Patterns(Styles, ""))
	require.NoError(t, err)
	require.Len(t, styles, 3)
	assert.Equal(t, "src/style/a.scss", styles[0].Path)
	assert.Equal(t, "src/style/b.scss", styles[1].Path)
	assert.Equal(t, "src/components/header/header.scss", styles[2].Path)
	assert.Equal(t, "header/header.scss", styles[2].Rel())

	raster, err := r.Glob(r.Patterns(Images, ""))
	require.NoError(t, err)
	var names []string
	for _, f := range raster {
		names = append(names, f.Rel())
	}
	assert.Equal(t, []string{"icons/photo.jpg", "logo.png"}, names)
}

func TestGlobDropsDuplicates(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "src/style/main.scss")

	r, err := New(dir, config.Default())
	require.NoError(t, err)

	files, err := r.Glob([]string{"src/style/*.scss", "src/style/**/*.scss"})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
