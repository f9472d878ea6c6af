package zipstream

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/denormal/go-gitignore"
)

// Filter is the interface used to filter paths added via AddDir.
type Filter interface {
	// Match on the given slash-separated relative path, if the
	// function returns true then the path is omitted. info may
	// be nil when the path does not come from the filesystem.
	Match(path string, info os.FileInfo) bool
}

// FilterFunc implements the Filter interface.
type FilterFunc func(string, os.FileInfo) bool

// Match implementation.
func (f FilterFunc) Match(path string, info os.FileInfo) bool {
	return f(path, info)
}

// FilterDotfiles filters dotfiles.
var FilterDotfiles = FilterFunc(func(path string, _ os.FileInfo) bool {
	dir, file := filepath.Split(path)
	return isDot(dir) || isDot(file)
})

// isDot returns true if there's a leading dot.
func isDot(s string) bool {
	return len(s) > 0 && s[0] == '.'
}

// FilterPatterns filters on gitignore patterns from the given reader.
func FilterPatterns(r io.Reader) (Filter, error) {
	filter := gitignore.New(r, ".", func(e gitignore.Error) bool {
		return true
	})

	return FilterFunc(func(path string, info os.FileInfo) bool {
		dir := info != nil && info.IsDir()
		if m := filter.Relative(path, dir); m != nil {
			return m.Ignore()
		}
		return false
	}), nil
}

// FilterPatternFiles filters from the given files, ignoring any
// which do not exist, combining the patterns in order.
func FilterPatternFiles(files ...string) (Filter, error) {
	var r io.Reader = strings.NewReader("")

	for _, path := range files {
		b, err := ioutil.ReadFile(path)

		if os.IsNotExist(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		r = io.MultiReader(r,
			strings.NewReader(fmt.Sprintf("# %s\n", path)),
			bytes.NewReader(b),
			strings.NewReader("\n"))
	}

	return FilterPatterns(r)
}
