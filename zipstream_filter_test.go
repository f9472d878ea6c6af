package zipstream_test

import (
	"strings"
	"testing"

	"github.com/tj/assert"
	zipstream "github.com/tj/go-zipstream"
)

type filterCase struct {
	Path string
	Ok   bool
}

type filterCases []filterCase

func (cases filterCases) Test(t *testing.T, f zipstream.Filter) {
	for _, c := range cases {
		included := c.Ok

		t.Run(c.Path, func(t *testing.T) {
			includedResult := !f.Match(c.Path, nil)

			if included == includedResult {
				return
			}

			s := "be filtered"
			if included {
				s = "not be filtered"
			}

			t.Fatalf("expected %q to %s", c.Path, s)
		})
	}
}

func file(path string, ok bool) filterCase {
	return filterCase{
		Path: path,
		Ok:   ok,
	}
}

func TestFilterDotfiles(t *testing.T) {
	cases := filterCases{
		file("foo", true),
		file("foo/bar/baz", true),
		file(".envrc", false),
		file("build/.something", false),
		file(".git", false),
		file(".git/hooks", false),
		file(".git/hooks/pre-commit", false),
	}

	cases.Test(t, zipstream.FilterDotfiles)
}

func TestFilterPatterns(t *testing.T) {
	cases := filterCases{
		file("server", true),
		file("main.go", false),
		file("Readme.md", false),
		file(".git", false),
	}

	patterns := strings.NewReader(`
.git
*.md
*.go
`)

	f, err := zipstream.FilterPatterns(patterns)
	assert.NoError(t, err, "filter")

	cases.Test(t, f)
}

func TestFilterPatterns_negate(t *testing.T) {
	cases := filterCases{
		file("server", true),
		file("main.go", false),
		file("Readme.md", false),
		file(".git", false),
	}

	patterns := strings.NewReader(`
*
!server
`)

	f, err := zipstream.FilterPatterns(patterns)
	assert.NoError(t, err, "filter")

	cases.Test(t, f)
}

func TestFilterPatternFiles(t *testing.T) {
	cases := filterCases{
		file("server", true),
		file("main.go", false),
		file("node_modules/foo", false),
		file(".envrc", false),
		file("static/index.html", true),
	}

	dir := tmpTree(t, map[string]string{
		".gitignore": "node_modules/**\n.envrc\n",
		".upignore":  "*.go\n",
	})

	f, err := zipstream.FilterPatternFiles(dir+"/.gitignore", dir+"/nope", dir+"/.upignore")
	assert.NoError(t, err, "filter")

	cases.Test(t, f)
}

func BenchmarkFilter(b *testing.B) {
	b.Run("FilterDotfiles", func(b *testing.B) {
		f := zipstream.FilterDotfiles

		for i := 0; i < b.N; i++ {
			f.Match("something", nil)
		}
	})
}
