// Package vips converts and recompresses raster images with libvips.
package vips

import (
	"fmt"
	"strings"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/toastate/toastpipe/internal/tlogger"
)

var startOnce sync.Once

// Startup initialises libvips. Safe to call more than once.
func Startup() {
	startOnce.Do(func() {
		vips.LoggingSettings(func(domain string, lvl vips.LogLevel, msg string) {
			if lvl <= vips.LogLevelWarning {
				tlogger.Warn("vips", domain, "msg", msg)
				return
			}
			tlogger.Debug("vips", domain, "msg", msg)
		}, vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			MaxCacheSize: 100,
			MaxCacheMem:  50 * 1024 * 1024,
		})
		tlogger.Debug("vips", "startup", "version", vips.Version)
	})
}

// Shutdown releases libvips resources.
func Shutdown() {
	vips.Shutdown()
}

type Codec struct {
	WebpQuality    int
	JpegQuality    int
	PngCompression int
}

func (c *Codec) Webp(src []byte) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer img.Close()

	params := vips.NewWebpExportParams()
	params.Quality = c.WebpQuality
	params.StripMetadata = true

	buf, _, err := img.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("webp export: %w", err)
	}
	return buf, nil
}

// Optimize recompresses png and jpeg data. Other formats are returned as is.
func (c *Codec) Optimize(ext string, src []byte) ([]byte, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext != "png" && ext != "jpg" && ext != "jpeg" {
		return src, nil
	}

	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer img.Close()

	var buf []byte
	if ext == "png" {
		params := vips.NewPngExportParams()
		params.Compression = c.PngCompression
		params.Palette = true
		params.StripMetadata = true
		buf, _, err = img.ExportPng(params)
	} else {
		params := vips.NewJpegExportParams()
		params.Quality = c.JpegQuality
		params.Interlace = true
		params.StripMetadata = true
		buf, _, err = img.ExportJpeg(params)
	}
	if err != nil {
		return nil, fmt.Errorf("%s export: %w", ext, err)
	}
	// never grow the file
	if len(buf) >= len(src) {
		return src, nil
	}
	return buf, nil
}
