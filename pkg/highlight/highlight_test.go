package highlight_test

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stitch/pkg/highlight"
)

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		profile   termenv.Profile
		wantColor bool
	}{
		"ascii":      {profile: termenv.Ascii},
		"ansi":       {profile: termenv.ANSI, wantColor: true},
		"ansi256":    {profile: termenv.ANSI256, wantColor: true},
		"true color": {profile: termenv.TrueColor, wantColor: true},
	}

	src := `<p class="x">hello</p>`

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := highlight.New("html", tc.profile, "").Render(src)
			require.NoError(t, err)

			if tc.wantColor {
				assert.Contains(t, got, "\x1b[")
				assert.NotEqual(t, src, got)

				return
			}

			assert.Equal(t, src, got)
		})
	}
}

func TestRenderer_UnknownLanguage(t *testing.T) {
	t.Parallel()

	got, err := highlight.New("not-a-language", termenv.Ascii, "not-a-style").Render("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		before string
		after  string
		want   string
	}{
		"equal": {
			before: "<p></p>",
			after:  "<p></p>",
			want:   "",
		},
		"changed": {
			before: "<h1></h1>\n<p></p>\n",
			after:  "<h1>Hi</h1>\n<p></p>\n",
			want: "--- a/index.html\n+++ b/index.html\n" +
				"@@ -1,2 +1,2 @@\n" +
				"-<h1></h1>\n" +
				"+<h1>Hi</h1>\n" +
				" <p></p>\n",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, highlight.Diff("index.html", tc.before, tc.after))
		})
	}
}
