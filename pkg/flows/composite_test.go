package flows_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lodge-sh/lodge/pkg/flows"
)

func TestWriteSection_AppendsToEmptyHost(t *testing.T) {
	out := flows.WriteSection(nil, flows.DefaultMarkers, "alpha", []byte("hello\n"))

	assert.Equal(t, "# lodge:begin alpha\nhello\n# lodge:end alpha\n", string(out))
}

func TestWriteSection_AppendsAfterExistingContent(t *testing.T) {
	host := []byte("user notes\n")

	out := flows.WriteSection(host, flows.DefaultMarkers, "alpha", []byte("hello"))

	assert.Equal(t, "user notes\n\n# lodge:begin alpha\nhello\n# lodge:end alpha\n", string(out))
}

func TestWriteSection_ReplacesOwnSectionOnly(t *testing.T) {
	host := flows.WriteSection(nil, flows.DefaultMarkers, "alpha", []byte("one"))
	host = flows.WriteSection(host, flows.DefaultMarkers, "beta", []byte("two"))

	out := flows.WriteSection(host, flows.DefaultMarkers, "alpha", []byte("rewritten"))

	assert.Contains(t, string(out), "# lodge:begin alpha\nrewritten\n# lodge:end alpha\n")
	assert.Contains(t, string(out), "# lodge:begin beta\ntwo\n# lodge:end beta\n")
	assert.NotContains(t, string(out), "one")
}

func TestWriteSection_CommentTrailer(t *testing.T) {
	markers := flows.Markers{Leader: "<!--", Trailer: "-->"}

	out := flows.WriteSection(nil, markers, "alpha", []byte("body"))

	assert.Equal(t, "<!-- lodge:begin alpha -->\nbody\n<!-- lodge:end alpha -->\n", string(out))
}

func TestStripSection_RemovesOnlyNamedSection(t *testing.T) {
	host := []byte("preamble\n")
	host = flows.WriteSection(host, flows.DefaultMarkers, "alpha", []byte("one"))
	host = flows.WriteSection(host, flows.DefaultMarkers, "beta", []byte("two"))

	out, found := flows.StripSection(host, flows.DefaultMarkers, "alpha")

	assert.True(t, found)
	assert.NotContains(t, string(out), "alpha")
	assert.Contains(t, string(out), "preamble\n")
	assert.Contains(t, string(out), "# lodge:begin beta\ntwo\n# lodge:end beta\n")
}

func TestStripSection_LastSectionLeavesEmptyHost(t *testing.T) {
	host := flows.WriteSection(nil, flows.DefaultMarkers, "alpha", []byte("one"))

	out, found := flows.StripSection(host, flows.DefaultMarkers, "alpha")

	assert.True(t, found)
	assert.Empty(t, out)
}

func TestStripSection_MissingSectionLeavesHostUntouched(t *testing.T) {
	host := []byte("plain file\n")

	out, found := flows.StripSection(host, flows.DefaultMarkers, "ghost")

	assert.False(t, found)
	assert.Equal(t, host, out)
}

func TestWriteStripRoundTrip_RestoresHost(t *testing.T) {
	host := []byte("line one\nline two\n")

	written := flows.WriteSection(host, flows.DefaultMarkers, "alpha", []byte("injected"))
	out, found := flows.StripSection(written, flows.DefaultMarkers, "alpha")

	assert.True(t, found)
	assert.Equal(t, string(host), string(out))
}
