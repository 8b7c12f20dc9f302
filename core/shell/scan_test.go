package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanDirectives(t *testing.T) {
	cases := []struct {
		line     string
		expected Directives
	}{
		{"ls", Directives{}},
		{"ls &", Directives{Background: true}},
		{"sort < a > b", Directives{Input: true, Output: true}},
		// Detection isn't scoped to the first or last stage.
		{"a | b < c | d", Directives{Input: true}},
	}

	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.expected, ScanDirectives(tc.line))
		})
	}
}

func TestSegment(t *testing.T) {
	stages, err := Segment(" a b |c|  d ")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a b", "c", "d"}, stages)

	_, err = Segment("a | | b")
	assert.Error(t, err)
}

func TestExtractRedirect(t *testing.T) {
	cases := []struct {
		stage   string
		marker  rune
		cleaned string
		path    string
		found   bool
	}{
		{"sort", InputMarker, "sort", "", false},
		{"sort < in.txt", InputMarker, "sort  ", "in.txt", true},
		{"sort <in.txt -r", InputMarker, "sort   -r", "in.txt", true},
		{"ls >   out.txt", OutputMarker, "ls  ", "out.txt", true},
		{"ls >", OutputMarker, "ls  ", "", true},
		{"a > b > c", OutputMarker, "a   > c", "b", true},
	}

	for _, tc := range cases {
		t.Run(tc.stage, func(t *testing.T) {
			cleaned, path, found := ExtractRedirect(tc.stage, tc.marker)
			assert.Equal(t, tc.cleaned, cleaned)
			assert.Equal(t, tc.path, path)
			assert.Equal(t, tc.found, found)
		})
	}
}

func TestStripBackground(t *testing.T) {
	assert.Equal(t, "sleep 1", StripBackground("sleep 1 &"))
	assert.Equal(t, "sleep 1", StripBackground("sleep 1 & ignored"))
	assert.Equal(t, "sleep 1", StripBackground("sleep 1"))
	assert.Equal(t, "", StripBackground("&"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"grep", "-c", `"a`, `b"`}, Tokenize(`  grep -c "a   b"  `))
	assert.Empty(t, Tokenize("   "))
}
