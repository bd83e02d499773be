package project

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDescriptor = `((tasks (build :command ("echo" "hi"))))`

func newTestFS(t *testing.T, roots ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, r := range roots {
		require.NoError(t, fs.MkdirAll(r, 0o755))
		require.NoError(t, afero.WriteFile(fs, DescriptorPath(r), []byte(minimalDescriptor), 0o644))
	}
	return fs
}

func TestStore_ResolveRoot(t *testing.T) {
	fs := newTestFS(t, "/override", "/located", "/default")
	require.NoError(t, fs.MkdirAll("/bare", 0o755))

	locateTo := func(root string) Locator {
		return LocatorFunc(func(string) (string, error) { return root, nil })
	}
	failing := LocatorFunc(func(string) (string, error) { return "", errors.New("nothing here") })

	tests := []struct {
		name     string
		override string
		def      string
		locator  Locator
		want     string
		tier     Tier
		wantErr  error
	}{
		{"override wins", "/override", "/default", locateTo("/located"), "/override", TierOverride, nil},
		{"override without descriptor skipped", "/bare", "/default", locateTo("/located"), "/located", TierLocator, nil},
		{"locator before default", "", "/default", locateTo("/located"), "/located", TierLocator, nil},
		{"locator answer without descriptor", "", "/default", locateTo("/bare"), "/default", TierDefault, nil},
		{"locator error falls back", "", "/default", failing, "/default", TierDefault, nil},
		{"no locator", "", "/default", nil, "/default", TierDefault, nil},
		{"nothing valid", "/bare", "/nowhere", locateTo("/bare"), "", "", ErrNoProjectFound},
		{"empty session", "", "", nil, "", "", ErrNoProjectFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []StoreOption{WithFS(fs)}
			if tt.locator != nil {
				opts = append(opts, WithLocator(tt.locator))
			}
			store := NewStore(opts...)

			root, tier, err := store.ResolveRootTier(NewSession(tt.override, tt.def), "/work")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, root)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestStore_ResolveRoot_NilSession(t *testing.T) {
	store := NewStore(WithFS(newTestFS(t)))
	_, err := store.ResolveRoot(nil, "")
	assert.ErrorIs(t, err, ErrNoProjectFound)
}

func TestStore_HasDescriptor_Directory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/p/.tasklist", 0o755))
	store := NewStore(WithFS(fs))
	assert.False(t, store.HasDescriptor("/p"))
	assert.False(t, store.HasDescriptor(""))
}

func TestStore_Load(t *testing.T) {
	fs := newTestFS(t, "/p")
	require.NoError(t, fs.MkdirAll("/broken", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/broken/.tasklist", []byte("((tasks (build"), 0o644))
	store := NewStore(WithFS(fs))

	d, err := store.Load("/p")
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, d.TaskIDs())

	_, err = store.Load("/missing")
	assert.ErrorIs(t, err, ErrDescriptorMissing)
	var de *DescriptorError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "/missing", de.Root)
	assert.Equal(t, "/missing/.tasklist", de.Path)
	assert.True(t, IsConfigError(err))

	_, err = store.Load("/broken")
	assert.ErrorIs(t, err, ErrDescriptorParse)
	assert.Contains(t, err.Error(), "/broken")
	assert.True(t, IsConfigError(err))
}

func TestStore_LoadReflectsEdits(t *testing.T) {
	fs := newTestFS(t, "/p")
	store := NewStore(WithFS(fs))

	d, err := store.Load("/p")
	require.NoError(t, err)
	require.Len(t, d.Tasks, 1)

	edited := `((tasks (build :command ("make")) (test :command ("go" "test"))))`
	require.NoError(t, afero.WriteFile(fs, "/p/.tasklist", []byte(edited), 0o644))

	d, err = store.Load("/p")
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "test"}, d.TaskIDs())
}

func TestMarkerLocator(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo/.git", 0o755))
	require.NoError(t, fs.MkdirAll("/repo/sub/deep", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/repo/sub/go.mod", []byte("module x"), 0o644))
	require.NoError(t, fs.MkdirAll("/lonely/dir", 0o755))

	l := NewMarkerLocatorWithFS(fs)

	root, err := l.Locate("/repo/sub/deep")
	require.NoError(t, err)
	assert.Equal(t, "/repo/sub", root)

	gitOnly := NewMarkerLocatorWithFS(fs, ".git")
	root, err = gitOnly.Locate("/repo/sub/deep")
	require.NoError(t, err)
	assert.Equal(t, "/repo", root)

	_, err = l.Locate("/lonely/dir")
	assert.ErrorIs(t, err, ErrNoProjectFound)
}

func TestNormalizeRoot(t *testing.T) {
	root, err := NormalizeRoot("/abs/p/")
	require.NoError(t, err)
	assert.Equal(t, "/abs/p/", root)

	root, err = NormalizeRoot("")
	require.NoError(t, err)
	assert.Empty(t, root)

	wd, err := filepath.Abs(".")
	require.NoError(t, err)
	root, err = NormalizeRoot("rel/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "rel")+"/", root)
}
