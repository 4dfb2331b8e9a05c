// Package sass compiles SCSS sources with libsass.
package sass

import (
	"fmt"
	"path/filepath"

	"github.com/bep/golibsass/libsass"
)

type Compiler struct {
	includePaths []string
	style        libsass.OutputStyle
}

// New returns a compiler using outputStyle ("expanded", "compressed", ...)
// and resolving imports against includePaths.
func New(outputStyle string, includePaths []string) *Compiler {
	return &Compiler{
		includePaths: includePaths,
		style:        libsass.ParseOutputStyle(outputStyle),
	}
}

// Compile turns the SCSS in src into CSS. filename is used to resolve
// relative imports and in error messages.
func (c *Compiler) Compile(filename string, src []byte) ([]byte, error) {
	includes := make([]string, 0, len(c.includePaths)+1)
	if filename != "" {
		includes = append(includes, filepath.Dir(filename))
	}
	includes = append(includes, c.includePaths...)

	transpiler, err := libsass.New(libsass.Options{
		IncludePaths: includes,
		OutputStyle:  c.style,
	})
	if err != nil {
		return nil, fmt.Errorf("libsass: %w", err)
	}

	res, err := transpiler.Execute(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return []byte(res.CSS), nil
}
