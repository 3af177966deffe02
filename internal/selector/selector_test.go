package selector

import (
	"math/rand"
	"path"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
	"github.com/stretchr/testify/assert"
)

func size(n int) *int { return &n }

func TestSelect(t *testing.T) {
	files := []hosting.FileEntry{
		{Path: "a.py", Size: size(2 * 1024), SHA: "1"},
		{Path: "b.md", Size: size(1024), SHA: "2"},
		{Path: "src/c.cpp", Size: size(6000 * 1024), SHA: "3"},
		{Path: "lib/D.PY", Size: size(10), SHA: "4"},
		{Path: "nosize.cpp", SHA: "5"},
		{Path: "edge.py", Size: size(1024 * 1024), SHA: "6"},
		{Path: "python", Size: size(1), SHA: "7"},
	}

	got := Select(files, []string{".py", ".cpp"}, 1024)

	paths := make([]string, len(got))
	for i, f := range got {
		paths[i] = f.Path
	}
	assert.Equal(t, []string{"a.py", "nosize.cpp"}, paths, "extension match is case-sensitive")
	assert.Equal(t, 2.0, got[0].SizeKB)
	assert.Equal(t, 0.0, got[1].SizeKB, "missing size counts as 0 KB")
	assert.Equal(t, "1", got[0].SHA)
}

func TestClassify(t *testing.T) {
	files := []hosting.FileEntry{
		{Path: "a.py", Size: size(2048)},
		{Path: "b.md", Size: size(1024)},
		{Path: "c.cpp", Size: size(6000 * 1024)},
	}

	res := Classify(files, Policy{Extensions: []string{"py", ".CPP"}, MaxSizeKB: 1024})

	assert.Len(t, res.Selected, 1)
	assert.Equal(t, "a.py", res.Selected[0].Path)
	assert.Len(t, res.Oversized, 1)
	assert.Equal(t, "c.cpp", res.Oversized[0].Path)
	assert.Equal(t, 6000.0, res.Oversized[0].SizeKB)
	assert.Equal(t, 1, res.Ignored)
}

func TestClassify_EmptyInputs(t *testing.T) {
	res := Classify(nil, Policy{Extensions: []string{".py"}, MaxSizeKB: 10})
	assert.Empty(t, res.Selected)
	assert.Zero(t, res.Ignored)

	res = Classify([]hosting.FileEntry{{Path: "a.py"}}, Policy{MaxSizeKB: 10})
	assert.Empty(t, res.Selected)
	assert.Equal(t, 1, res.Ignored, "empty allow-list selects nothing")
}

// TestSelect_Invariants checks on random listings that every selected entry
// is allow-listed and below the ceiling, that nothing eligible is dropped,
// and that input order is preserved.
func TestSelect_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	exts := []string{".py", ".js", ".md", ".c", ".txt", ""}
	allow := []string{".py", ".c"}
	const ceiling = 50.0

	for iter := 0; iter < 200; iter++ {
		var files []hosting.FileEntry
		n := rng.Intn(30)
		for i := 0; i < n; i++ {
			f := hosting.FileEntry{Path: "f" + string(rune('a'+i)) + exts[rng.Intn(len(exts))]}
			if rng.Intn(5) > 0 {
				f.Size = size(rng.Intn(100 * 1024))
			}
			files = append(files, f)
		}

		got := Select(files, allow, ceiling)

		var want []string
		for _, f := range files {
			ext := path.Ext(f.Path)
			if (ext == ".py" || ext == ".c") && sizeKB(f.Size) < ceiling {
				want = append(want, f.Path)
			}
		}
		var gotPaths []string
		for _, f := range got {
			assert.Less(t, f.SizeKB, ceiling)
			assert.True(t, strings.HasSuffix(f.Path, ".py") || strings.HasSuffix(f.Path, ".c"))
			gotPaths = append(gotPaths, f.Path)
		}
		assert.Equal(t, want, gotPaths)
	}
}
