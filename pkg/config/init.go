package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var Config = Default()

// DefaultConfigFiles are probed in order when no configuration path is given.
var DefaultConfigFiles = []string{"toastpipe.json", "toastpipe.yaml", "toastpipe.yml"}

// Default returns a fresh configuration reproducing the stock src/ -> dist/ layout.
func Default() *Configuration {
	return &Configuration{
		OutputRoot: "dist",
		Paths: map[string]PathConfig{
			"html": {
				Src:  []string{"src/*.html"},
				Dist: "dist",
				Sets: map[string][]string{
					"components": {"src/components/**/*.html"},
				},
			},
			"styles": {
				Src:  []string{"src/style/**.scss", "src/components/**/*.scss"},
				Dist: "dist",
				Sets: map[string][]string{
					"root": {"src/style/*.scss"},
				},
			},
			"scripts": {
				Src:  []string{"src/scripts/**/*.js"},
				Dist: "dist",
			},
			"images": {
				Src:  []string{"src/image/**/*", "!src/image/**/*.svg"},
				Dist: "dist/image",
				Sets: map[string][]string{
					"svg":  {"src/image/**/*.svg"},
					"webp": {"src/image/**/*.{png,jpg,jpeg}"},
				},
			},
			"fonts": {
				Src:  []string{"src/fonts/*.ttf"},
				Dist: "dist/fonts",
			},
			"video": {
				Src:  []string{"src/video/*"},
				Dist: "dist/video",
			},
		},
		HTML: HTMLConfig{
			IncludePrefix: "@",
			Minify:        false,
		},
		Styles: StylesConfig{
			Output:      "style.css",
			OutputStyle: "expanded",
			Browsers:    []string{"last 10 versions"},
			Grid:        true,
			Minify:      false,
		},
		Scripts: ScriptsConfig{
			Output: "script.js",
			Minify: false,
		},
		Images: ImagesConfig{
			WebpQuality:    75,
			JpegQuality:    75,
			PngCompression: 5,
		},
		ServeConfig: ServeConfiguration{
			Redirect404: "",
			Port:        3000,
			DebounceMs:  300,
			Metrics:     true,
		},
	}
}

type Configuration struct {
	OutputRoot  string                `json:"output_root,omitempty" yaml:"output_root,omitempty"`
	Paths       map[string]PathConfig `json:"paths,omitempty" yaml:"paths,omitempty"`
	HTML        HTMLConfig            `json:"html,omitempty" yaml:"html,omitempty"`
	Styles      StylesConfig          `json:"styles,omitempty" yaml:"styles,omitempty"`
	Scripts     ScriptsConfig         `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	Images      ImagesConfig          `json:"images,omitempty" yaml:"images,omitempty"`
	ServeConfig ServeConfiguration    `json:"serve_config,omitempty" yaml:"serve_config,omitempty"`
}

// PathConfig is the on-disk form of one path registry entry.
// Patterns starting with "!" exclude matches.
type PathConfig struct {
	Src  []string            `json:"src" yaml:"src"`
	Dist string              `json:"dist" yaml:"dist"`
	Sets map[string][]string `json:"sets,omitempty" yaml:"sets,omitempty"`
}

type HTMLConfig struct {
	IncludePrefix string `json:"include_prefix,omitempty" yaml:"include_prefix,omitempty"`
	Minify        bool   `json:"minify" yaml:"minify"`
}

type StylesConfig struct {
	Output       string   `json:"output,omitempty" yaml:"output,omitempty"`
	OutputStyle  string   `json:"output_style,omitempty" yaml:"output_style,omitempty"`
	IncludePaths []string `json:"include_paths,omitempty" yaml:"include_paths,omitempty"`
	Browsers     []string `json:"browsers,omitempty" yaml:"browsers,omitempty"`
	Grid         bool     `json:"grid" yaml:"grid"`
	Minify       bool     `json:"minify" yaml:"minify"`
}

type ScriptsConfig struct {
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	Minify bool   `json:"minify" yaml:"minify"`
}

type ImagesConfig struct {
	WebpQuality    int `json:"webp_quality,omitempty" yaml:"webp_quality,omitempty"`
	JpegQuality    int `json:"jpeg_quality,omitempty" yaml:"jpeg_quality,omitempty"`
	PngCompression int `json:"png_compression,omitempty" yaml:"png_compression,omitempty"`
}

type ServeConfiguration struct {
	Redirect404 string `json:"redirect_404" yaml:"redirect_404"`
	Port        int    `json:"port" yaml:"port"`
	DebounceMs  int    `json:"debounce_ms" yaml:"debounce_ms"`
	Metrics     bool   `json:"metrics" yaml:"metrics"`
}

// Init overlays the configuration file on top of the defaults held in Config.
// An empty path probes DefaultConfigFiles; a missing default file is not an error.
func Init(configpath string) error {
	if configpath == "" {
		for _, candidate := range DefaultConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				configpath = candidate
				break
			}
		}
		if configpath == "" {
			return nil
		}
	}

	return Load(configpath, Config)
}

// Load decodes the file at configpath into dst, picking the decoder from the extension.
func Load(configpath string, dst *Configuration) error {
	_, err := os.Stat(configpath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not access configuration file %s: %v", configpath, err)
		}

		return nil
	}

	f, err := os.Open(configpath)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(configpath)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(dst)
	default:
		err = json.NewDecoder(f).Decode(dst)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("could not decode configuration file %s: %w", configpath, err)
	}

	return nil
}
