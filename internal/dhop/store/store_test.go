package store

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenGG/dhop/internal/dhop/domain"
	"github.com/OpenGG/dhop/internal/dhop/storage"
)

const storePath = "/home/test/.dhop.json"

type recordingPreserver struct {
	paths []string
}

func (r *recordingPreserver) BackupFile(path string) (string, error) {
	r.paths = append(r.paths, path)
	return "/home/test/.dhop-backup/x.json", nil
}

func newTestFile(t *testing.T, policy Policy, preserver Preserver) (*File, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewFile(storage.New(fs), storePath, policy, preserver, nil), fs
}

func TestLoad_MissingFileYieldsDefault(t *testing.T) {
	for _, policy := range []Policy{Lenient, Strict} {
		t.Run(string(policy), func(t *testing.T) {
			f, _ := newTestFile(t, policy, nil)

			s, err := f.Load()
			require.NoError(t, err)
			assert.True(t, s.Equal(Default()))
			assert.NotNil(t, s.Locations)
			assert.NotNil(t, s.Stack)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f, _ := newTestFile(t, Strict, nil)
	original := Store{
		Locations: map[string]string{"docs": "/tmp/project/docs", "src": "/tmp/project/src"},
		Mark:      "/tmp/a",
		Stack:     []string{"/tmp/a", "/tmp/b"},
	}

	require.NoError(t, f.Save(original))
	loaded, err := f.Load()
	require.NoError(t, err)
	assert.True(t, loaded.Equal(original), "loaded %+v, want %+v", loaded, original)
}

func TestSaveIsByteStableForUntouchedStore(t *testing.T) {
	f, fs := newTestFile(t, Strict, nil)
	s := Store{
		Locations: map[string]string{"b": "/b", "a": "/a"},
		Mark:      "",
		Stack:     []string{"/x"},
	}
	require.NoError(t, f.Save(s))
	first, err := afero.ReadFile(fs, storePath)
	require.NoError(t, err)

	loaded, err := f.Load()
	require.NoError(t, err)
	require.NoError(t, f.Save(loaded))
	second, err := afero.ReadFile(fs, storePath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestMarshal_EmptyCollectionsAreNotNull(t *testing.T) {
	data, err := Marshal(Store{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"locations":{},"mark":"","stack":[]}`, string(data))
}

func TestUnmarshal_CompactLegacyRecord(t *testing.T) {
	s, err := Unmarshal([]byte(`{"locations": {"docs": "/tmp/docs"}, "mark": "", "stack": []}`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/docs", s.Locations["docs"])
	assert.Empty(t, s.Mark)
	assert.Empty(t, s.Stack)
}

func TestUnmarshal_RejectsUnknownFields(t *testing.T) {
	_, err := Unmarshal([]byte(`{"locations": {}, "bogus": 1}`))
	assert.Error(t, err)
}

func TestUnmarshal_RejectsTrailingData(t *testing.T) {
	for _, data := range []string{
		`{"locations": {}, "mark": "", "stack": []} garbage`,
		`{"locations": {}, "mark": "", "stack": []}{}`,
	} {
		_, err := Unmarshal([]byte(data))
		assert.Error(t, err, data)
	}

	_, err := Unmarshal([]byte("{\"locations\": {}}\n\n"))
	assert.NoError(t, err, "trailing whitespace is fine")
}

func TestLoad_TrailingDataIsCorrupt(t *testing.T) {
	f, fs := newTestFile(t, Strict, nil)
	require.NoError(t, afero.WriteFile(fs, storePath, []byte(`{"mark": "/tmp"}]`), 0o600))

	_, err := f.Load()
	require.ErrorIs(t, err, domain.ErrSerialization)
}

func TestLoad_CorruptLenientFallsBackAndPreserves(t *testing.T) {
	preserver := &recordingPreserver{}
	f, fs := newTestFile(t, Lenient, preserver)
	require.NoError(t, afero.WriteFile(fs, storePath, []byte("{not json"), 0o600))

	s, err := f.Load()
	require.NoError(t, err)
	assert.True(t, s.Equal(Default()))
	assert.Equal(t, []string{storePath}, preserver.paths)
}

func TestLoad_CorruptStrictFails(t *testing.T) {
	preserver := &recordingPreserver{}
	f, fs := newTestFile(t, Strict, preserver)
	require.NoError(t, afero.WriteFile(fs, storePath, []byte("{not json"), 0o600))

	_, err := f.Load()
	require.ErrorIs(t, err, domain.ErrSerialization)
	assert.Empty(t, preserver.paths, "strict policy must not touch the corrupt file")
}

func TestCloneDoesNotAlias(t *testing.T) {
	s := Store{Locations: map[string]string{"a": "/a"}, Stack: []string{"/x"}}
	c := s.Clone()
	c.Locations["b"] = "/b"
	c.Push("/y")

	assert.NotContains(t, s.Locations, "b")
	assert.Equal(t, []string{"/x"}, s.Stack)
}

func TestPushPop(t *testing.T) {
	s := Default()
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push("/a")
	s.Push("/b")
	top, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "/b", top)
	assert.Equal(t, []string{"/a"}, s.Stack)
}

func TestLocationNamesSorted(t *testing.T) {
	s := Store{Locations: map[string]string{"zeta": "/z", "alpha": "/a", "mid": "/m"}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.LocationNames())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Lenient, p)

	p, err = ParsePolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	_, err = ParsePolicy("paranoid")
	assert.Error(t, err)
}
