package build_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stitch/pkg/build"
	"github.com/macropower/stitch/pkg/data"
	"github.com/macropower/stitch/pkg/pipeline"
	"github.com/macropower/stitch/pkg/rule"
)

func newBuilder(t *testing.T, root string, specs ...rule.Spec) *build.Builder {
	t.Helper()

	rules, err := rule.Normalize(specs, root)
	require.NoError(t, err)

	return build.New(pipeline.New(rules, data.NewLoader(nil)), build.WithConcurrency(2))
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()

	b, err := os.ReadFile(p)
	require.NoError(t, err)

	return string(b)
}

func TestBuilder_Transform(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, t.TempDir(),
		rule.Spec{
			Selector:    "#year",
			Render:      `"2025"`,
			PathIgnore:  rule.StringList{"/about.html"},
			DataModules: nil,
		},
		rule.Spec{
			Selector: "#bad",
			Renderer: rule.RenderFunc(func(context.Context, map[string]any) (string, error) {
				return "", errors.New("bad render")
			}),
			PathIsolate: rule.StringList{"/index.html"},
		},
	)

	docs := map[string]string{
		"/index.html": `<span id="year"></span><b id="bad">keep</b>`,
		"/about.html": `<span id="year"></span>`,
		"/blog.html":  `<span id="year"></span>`,
	}

	out, rep := b.Transform(t.Context(), docs)

	assert.Equal(t, map[string]string{
		"/index.html": `<span id="year">2025</span><b id="bad">keep</b>`,
		"/about.html": `<span id="year"></span>`,
		"/blog.html":  `<span id="year">2025</span>`,
	}, out)

	require.Len(t, rep.Documents, 3)
	assert.Equal(t, 2, rep.Applied())
	require.NoError(t, rep.Err())
	require.ErrorContains(t, rep.RuleErr(), "bad render")
	assert.Contains(t, rep.Summary(), "3 documents")
	assert.Contains(t, rep.Summary(), "2 replacements")
	assert.Contains(t, rep.Summary(), "1 rule error,")
}

func TestBuilder_Transform_Canceled(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, t.TempDir(), rule.Spec{Selector: "p", Render: `"x"`})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	out, rep := b.Transform(ctx, map[string]string{"/a.html": "<p></p>"})
	assert.Equal(t, "<p></p>", out["/a.html"])
	require.ErrorIs(t, rep.Err(), context.Canceled)
}

func TestBuilder_Dir_InPlace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	site := filepath.Join(root, "site")

	writeFiles(t, root, map[string]string{
		"data/site.json":       `{"name": "Acme"}`,
		"site/index.html":      `<h1 id="name"></h1>`,
		"site/blog/post.HTM":   `<h1 id="name"></h1>`,
		"site/untouched.html":  `<p>  no targets  </p>`,
		"site/styles/main.css": `h1 { color: red }`,
	})

	b := newBuilder(t, root, rule.Spec{
		Selector:    "#name",
		Render:      `data.site.name + " " + document`,
		DataModules: rule.StringList{"data/site.json"},
	})

	rep, err := b.Dir(t.Context(), site, "")
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	require.NoError(t, rep.RuleErr())
	require.Len(t, rep.Documents, 3)

	assert.Equal(t, `<h1 id="name">Acme /index.html</h1>`, readFile(t, filepath.Join(site, "index.html")))
	assert.Equal(t, `<h1 id="name">Acme /blog/post.HTM</h1>`, readFile(t, filepath.Join(site, "blog", "post.HTM")))
	assert.Equal(t, `<p>  no targets  </p>`, readFile(t, filepath.Join(site, "untouched.html")))
	assert.Equal(t, `h1 { color: red }`, readFile(t, filepath.Join(site, "styles", "main.css")))

	written := 0
	for _, d := range rep.Documents {
		if d.Written != "" {
			written++
		}
	}

	assert.Equal(t, 2, written, "unchanged documents are not rewritten")
}

func TestBuilder_Dir_OutDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	site := filepath.Join(root, "site")
	out := filepath.Join(site, "dist")

	writeFiles(t, root, map[string]string{
		"site/index.html":      `<i class="v"></i>`,
		"site/nested/a.html":   `<i class="v"></i><i class="v"></i>`,
		"site/dist/stale.html": `<i class="v"></i>`,
	})

	b := newBuilder(t, root, rule.Spec{Selector: ".v", Render: `"1"`})

	rep, err := b.Dir(t.Context(), site, out)
	require.NoError(t, err)
	require.Len(t, rep.Documents, 2, "the out directory is skipped")
	assert.Equal(t, 3, rep.Applied())

	assert.Equal(t, `<i class="v">1</i>`, readFile(t, filepath.Join(out, "index.html")))
	assert.Equal(t, `<i class="v">1</i><i class="v">1</i>`, readFile(t, filepath.Join(out, "nested", "a.html")))
	assert.Equal(t, `<i class="v"></i>`, readFile(t, filepath.Join(site, "index.html")), "sources are untouched")
}

func TestBuilder_Dir_Missing(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, t.TempDir())

	_, err := b.Dir(t.Context(), filepath.Join(t.TempDir(), "nope"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}
