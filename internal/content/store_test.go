package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New("", 0)

	_, err := s.Put("doc/a.txt", 1, []byte("hello"), "agent-1", nil)
	require.NoError(t, err)
	_, err = s.Put("doc/a.txt", 2, []byte("hello world"), "agent-1", nil)
	require.NoError(t, err)

	got, err := s.Get("doc/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestHistoryMostRecentFirst(t *testing.T) {
	s := New("", 0)
	_, _ = s.Put("doc/a.txt", 1, []byte("hello"), "a", nil)
	_, _ = s.Put("doc/a.txt", 2, []byte("hello world"), "a", nil)

	hist, err := s.History("doc/a.txt", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "hello world", string(hist[0].Bytes))
	assert.Equal(t, "hello", string(hist[1].Bytes))
}

func TestHistoryLimit(t *testing.T) {
	s := New("", 0)
	for i := 1; i <= 20; i++ {
		_, err := s.Put("doc/a.txt", int64(i), []byte{byte(i)}, "a", nil)
		require.NoError(t, err)
	}
	hist, err := s.History("doc/a.txt", 10)
	require.NoError(t, err)
	require.Len(t, hist, 10)
	assert.Equal(t, byte(20), hist[0].Bytes[0])
	assert.Equal(t, byte(11), hist[9].Bytes[0])
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New("", 0)
	_, err := s.Get("missing.txt")
	require.Error(t, err)
}

func TestPutRejectsTraversal(t *testing.T) {
	s := New("", 0)
	cases := []string{
		"../etc/passwd",
		"a/../../b",
		"/absolute/path",
		"a\x00b",
		"a/%2e%2e/b",
		"a/．．/b", // fullwidth dot-dot
	}
	for _, c := range cases {
		_, err := s.Put(c, 1, []byte("x"), "a", nil)
		assert.Error(t, err, "expected rejection for %q", c)
	}
}

func TestPutRequiresStrictlyIncreasingTimestamps(t *testing.T) {
	s := New("", 0)
	_, err := s.Put("a.txt", 5, []byte("x"), "a", nil)
	require.NoError(t, err)
	_, err = s.Put("a.txt", 5, []byte("y"), "a", nil)
	assert.Error(t, err)
	_, err = s.Put("a.txt", 4, []byte("y"), "a", nil)
	assert.Error(t, err)

	// failed write leaves the store unchanged
	got, err := s.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestMetadataWithNonUTF8BytesRoundTrips(t *testing.T) {
	s := New("", 0)
	_, err := s.Put("a.txt", 1, []byte{0xff, 0xfe, 0x00, 0x01}, "a", map[string]string{"k": "v"})
	require.NoError(t, err)
	got, err := s.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00, 0x01}, got)
}

func TestRootRelativePathsCoalesce(t *testing.T) {
	s := New("workspace", 0)
	_, err := s.Put("workspace/a.txt", 1, []byte("x"), "a", nil)
	require.NoError(t, err)

	got, err := s.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	_, err = s.Put("workspace", 2, []byte("y"), "a", nil)
	assert.Error(t, err, "the bare root is not a content path")
}

func TestPutRejectsEmptyNormalizedPath(t *testing.T) {
	s := New("", 0)
	_, err := s.Put("./", 1, []byte("x"), "a", nil)
	assert.Error(t, err)
}

func TestPathsListsAllStoredPaths(t *testing.T) {
	s := New("", 0)
	_, _ = s.Put("a.txt", 1, []byte("x"), "a", nil)
	_, _ = s.Put("b/c.txt", 1, []byte("y"), "a", nil)
	paths := s.Paths()
	assert.ElementsMatch(t, []Path{"a.txt", "b/c.txt"}, paths)
}

func TestReverseDeltaReconstructsExactly(t *testing.T) {
	s := New("", 0)
	versions := [][]byte{
		[]byte("the quick brown fox"),
		[]byte("the quick red fox jumps"),
		[]byte("the quick red fox jumps over the lazy dog"),
		[]byte(""),
		[]byte("fresh content entirely"),
	}
	for i, v := range versions {
		_, err := s.Put("f.txt", int64(i+1), v, "a", nil)
		require.NoError(t, err)
	}
	hist, err := s.History("f.txt", 0)
	require.NoError(t, err)
	require.Len(t, hist, len(versions))
	for i, v := range versions {
		assert.Equal(t, string(v), string(hist[len(versions)-1-i].Bytes))
	}
}
