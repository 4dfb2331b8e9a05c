package builder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var windowCRregexp = regexp.MustCompile(`\r?\n`)

func replaceWindowsCarriageReturn(b []byte) []byte {
	return windowCRregexp.ReplaceAll(b, []byte("\n"))
}

func copyFile(src, dst string) (int64, error) {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	if !sourceFileStat.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	destination, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer destination.Close()
	return io.Copy(destination, source)
}

// IsStale reports whether dst is missing or older than src. Equal
// modification times count as up to date.
func IsStale(src, dst string) (bool, error) {
	si, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	di, err := os.Stat(dst)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return si.ModTime().After(di.ModTime()), nil
}

// writeOutput writes data to dst, through the minifier for mediatype when
// fw is not nil.
func writeOutput(dst string, data []byte, fw FileWriter, mediatype string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	of, err := os.Create(dst)
	if err != nil {
		return err
	}

	if fw == nil {
		fw = &NOOPMinifier{}
	}
	wr := fw.Writer(mediatype, of)
	if _, err := wr.Write(data); err != nil {
		of.Close()
		return err
	}
	// NOOPMinifier hands back of itself
	werr := wr.Close()
	if wr == io.WriteCloser(of) {
		return werr
	}
	if err := of.Close(); werr == nil {
		werr = err
	}
	return werr
}

// removeAll retries twice, some platforms keep handles open for a little while.
func removeAll(path string) error {
	err := os.RemoveAll(path)
	if err != nil {
		<-time.After(time.Millisecond * 20)
		err = os.RemoveAll(path)
		if err != nil {
			<-time.After(time.Millisecond * 20)
			err = os.RemoveAll(path)
		}
	}
	return err
}

// destination maps a path below a category's glob base to its output file.
// It returns the path on disk and the path relative to the output root.
func (b *Builder) destination(spec string, rel string) (string, string) {
	dst := filepath.Join(spec, filepath.FromSlash(rel))
	shown, err := filepath.Rel(b.registry.Root, dst)
	if err != nil || strings.HasPrefix(shown, "..") {
		shown = dst
	}
	return filepath.Join(b.registry.Dir, dst), filepath.ToSlash(shown)
}

func replaceExt(p, ext string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}
