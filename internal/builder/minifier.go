package builder

import (
	"io"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

type FileWriter interface {
	Writer(string, io.WriteCloser) io.WriteCloser
}

type TDMinifier struct {
	Minifier *minify.M
}

func (m *TDMinifier) Writer(mediatype string, out io.WriteCloser) io.WriteCloser {
	return m.Minifier.Writer(mediatype, out)
}

type NOOPMinifier struct {
}

func (m *NOOPMinifier) Writer(mediatype string, out io.WriteCloser) io.WriteCloser {
	return out
}

func NewTDMinifier() *TDMinifier {
	minifier := minify.New()
	minifier.AddFunc("text/css", css.Minify)
	minifier.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
	})
	// ids are referenced from css and <use>, keep them
	minifier.Add("image/svg+xml", &svg.Minifier{})
	minifier.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return &TDMinifier{
		Minifier: minifier,
	}
}
