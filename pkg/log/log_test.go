package log_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stitch/pkg/log"
)

func TestGetLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		want    slog.Level
		wantErr bool
	}{
		"debug":   {want: slog.LevelDebug},
		"INFO":    {want: slog.LevelInfo},
		"warn":    {want: slog.LevelWarn},
		"warning": {want: slog.LevelWarn},
		"error":   {want: slog.LevelError},
		"trace":   {wantErr: true},
	}

	for in, tc := range tcs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			got, err := log.GetLevel(in)
			if tc.wantErr {
				require.ErrorIs(t, err, log.ErrUnknownLogLevel)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetFormat(t *testing.T) {
	t.Parallel()

	for _, f := range log.AllFormats {
		got, err := log.GetFormat(f)
		require.NoError(t, err)
		assert.Equal(t, log.Format(f), got)
	}

	_, err := log.GetFormat("xml")
	require.ErrorIs(t, err, log.ErrUnknownLogFormat)
}

func TestCreateHandlerWithStrings(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		level   string
		format  string
		want    string
		wantErr error
	}{
		"json": {
			level:  "info",
			format: "json",
			want:   `"msg":"hello"`,
		},
		"logfmt": {
			level:  "info",
			format: "logfmt",
			want:   "msg=hello",
		},
		"text": {
			level:  "debug",
			format: "text",
			want:   "hello",
		},
		"filtered": {
			level:  "error",
			format: "json",
		},
		"bad level": {
			level:   "loud",
			format:  "json",
			wantErr: log.ErrUnknownLogLevel,
		},
		"bad format": {
			level:   "info",
			format:  "xml",
			wantErr: log.ErrUnknownLogFormat,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			h, err := log.CreateHandlerWithStrings(&buf, tc.level, tc.format)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, log.ErrInvalidArgument)
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)

			slog.New(h).Info("hello", slog.String("document", "/index.html"))

			if tc.want == "" {
				assert.Empty(t, buf.String())

				return
			}

			assert.Contains(t, buf.String(), tc.want)
			assert.Contains(t, buf.String(), "/index.html")
		})
	}
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Default(), log.WithContext(t.Context()))

	logger := slog.New(slog.DiscardHandler)
	ctx := log.WithLogger(t.Context(), logger)
	assert.Same(t, logger, log.WithContext(ctx))
}
