package api_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stitch/api"
)

func TestReadFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setup   func(t *testing.T) string
		want    string
		wantErr error
	}{
		"regular file": {
			setup: func(t *testing.T) string {
				t.Helper()

				p := filepath.Join(t.TempDir(), "stitch.yaml")
				require.NoError(t, os.WriteFile(p, []byte("kind: Configuration\n"), 0o600))

				return p
			},
			want: "kind: Configuration\n",
		},
		"missing": {
			setup: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "missing.yaml")
			},
			wantErr: fs.ErrNotExist,
		},
		"directory": {
			setup: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: api.ErrIsDirectory,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := api.ReadFile(tc.setup(t))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestMarshalYAML(t *testing.T) {
	t.Parallel()

	b, err := api.MarshalYAML(map[string]any{
		"moduleGroups": []map[string]any{{"selector": "footer"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "moduleGroups:\n  - selector: footer\n", string(b))
}

func TestWriteDefaultFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		existing string
		force    bool
		want     string
		backups  int
	}{
		"new file": {
			want: "new",
		},
		"keeps existing": {
			existing: "old",
			want:     "old",
		},
		"force backs up existing": {
			existing: "old",
			force:    true,
			want:     "new",
			backups:  1,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := filepath.Join(t.TempDir(), "nested")
			p := filepath.Join(dir, "stitch.yaml")

			if tc.existing != "" {
				require.NoError(t, os.MkdirAll(dir, 0o750))
				require.NoError(t, os.WriteFile(p, []byte(tc.existing), 0o600))
			}

			require.NoError(t, api.WriteDefaultFile(p, []byte("new"), tc.force))

			got, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))

			backups, err := filepath.Glob(filepath.Join(dir, "stitch.yaml.*.old"))
			require.NoError(t, err)
			assert.Len(t, backups, tc.backups)

			for _, b := range backups {
				old, err := os.ReadFile(b)
				require.NoError(t, err)
				assert.Equal(t, tc.existing, string(old))
			}
		})
	}
}

func TestWriteDefaultFile_Directory(t *testing.T) {
	t.Parallel()

	err := api.WriteDefaultFile(t.TempDir(), []byte("new"), true)
	require.ErrorIs(t, err, api.ErrIsDirectory)
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		files   []string
		target  string
		want    string
		wantErr bool
	}{
		"in target directory": {
			files:  []string{"site/stitch.yaml"},
			target: "site",
			want:   "site/stitch.yaml",
		},
		"in parent directory": {
			files:  []string{"stitch.yaml", "site/public/index.html"},
			target: "site/public",
			want:   "stitch.yaml",
		},
		"target is a file": {
			files:  []string{"site/.stitch.yaml", "site/index.html"},
			target: "site/index.html",
			want:   "site/.stitch.yaml",
		},
		"prefers stitch.yaml": {
			files:  []string{"stitch.yaml", ".stitch.yaml"},
			target: ".",
			want:   "stitch.yaml",
		},
		"nearest wins": {
			files:  []string{"stitch.yaml", "site/.stitch.yaml"},
			target: "site",
			want:   "site/.stitch.yaml",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			for _, f := range tc.files {
				p := filepath.Join(root, filepath.FromSlash(f))
				require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
				require.NoError(t, os.WriteFile(p, nil, 0o600))
			}

			got, err := api.FindConfigFile(filepath.Join(root, tc.target))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tc.want)), got)
		})
	}
}

func TestFindConfigFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := api.FindConfigFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
