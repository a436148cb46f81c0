package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"

	"github.com/macropower/stitch/pkg/yaml"
)

// DecodeFunc decodes the contents of the file at path.
type DecodeFunc func(path string, b []byte) (any, error)

// DefaultDecoders maps lowercase file extensions to decoders.
func DefaultDecoders() map[string]DecodeFunc {
	return map[string]DecodeFunc{
		".json": DecodeJSON,
		".yaml": DecodeYAML,
		".yml":  DecodeYAML,
		".toml": DecodeTOML,
		".cue":  DecodeCUE,
	}
}

// DecodeJSON decodes a single JSON value. Integral numbers become int64,
// others float64.
func DecodeJSON(_ string, b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any

	err := dec.Decode(&v)
	if errors.Is(err, io.EOF) {
		return nil, ErrNoUsableValue
	}
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	if dec.More() {
		return nil, errors.New("decode json: unexpected data after top-level value")
	}

	return normalizeNumbers(v), nil
}

// DecodeYAML decodes the first YAML document. Duplicate keys are rejected.
func DecodeYAML(_ string, b []byte) (any, error) {
	var v any

	err := yaml.NewStrictDecoder(bytes.NewReader(b)).Decode(&v)
	if errors.Is(err, io.EOF) {
		return nil, ErrNoUsableValue
	}
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if v == nil {
		return nil, ErrNoUsableValue
	}

	return v, nil
}

// DecodeTOML decodes a TOML document into a map. Local dates, times and
// date-times have no zone, so they become their RFC 3339 strings, e.g.
// "2025-01-02" or "03:04:05". Offset date-times stay [time.Time].
func DecodeTOML(_ string, b []byte) (any, error) {
	var v map[string]any

	err := toml.Unmarshal(b, &v)
	if err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}

	return normalizeLocalTimes(v), nil
}

// DecodeCUE evaluates a CUE file. The evaluated root must be concrete; its
// value is what the module exports.
func DecodeCUE(path string, b []byte) (any, error) {
	cctx := cuecontext.New()

	v := cctx.CompileBytes(b, cue.Filename(path))
	if v.Err() != nil {
		return nil, fmt.Errorf("compile cue: %w", v.Err())
	}

	err := v.Validate(cue.Concrete(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoUsableValue, err)
	}

	j, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoUsableValue, err)
	}

	return DecodeJSON(path, j)
}

func normalizeLocalTimes(v any) any {
	switch t := v.(type) {
	case toml.LocalDate:
		return t.String()

	case toml.LocalTime:
		return t.String()

	case toml.LocalDateTime:
		return t.String()

	case []any:
		for i := range t {
			t[i] = normalizeLocalTimes(t[i])
		}

		return t

	case map[string]any:
		for k := range t {
			t[k] = normalizeLocalTimes(t[k])
		}

		return t
	}

	return v
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}

		f, err := t.Float64()
		if err != nil {
			return t.String()
		}

		return f

	case []any:
		for i := range t {
			t[i] = normalizeNumbers(t[i])
		}

		return t

	case map[string]any:
		for k := range t {
			t[k] = normalizeNumbers(t[k])
		}

		return t
	}

	return v
}
