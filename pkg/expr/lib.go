package expr

import (
	"encoding/json"
	"html"
	"math"
	"path"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),

		// `htmlEscape` escapes <, >, &, ' and ".
		// Example: "<li>" + htmlEscape(p.title) + "</li>".
		cel.Function("htmlEscape",
			cel.Overload("html_escape", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(s ref.Val) ref.Val {
					str, ok := s.(types.String)
					if !ok {
						return types.NewErr("htmlEscape: invalid string value")
					}

					return types.String(html.EscapeString(string(str)))
				}),
			),
		),

		// `pathBase` returns the last element of the path.
		// Example: pathBase(document) == "index.html".
		cel.Function("pathBase",
			cel.Overload("path_base", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(p ref.Val) ref.Val {
					pathValue, ok := p.(types.String)
					if !ok {
						return types.NewErr("pathBase: invalid string value")
					}

					return types.String(path.Base(string(pathValue)))
				}),
			),
		),

		// `pathDir` returns all but the last element of the path.
		// Example: pathDir(document) == "/blog".
		cel.Function("pathDir",
			cel.Overload("path_dir", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(p ref.Val) ref.Val {
					pathValue, ok := p.(types.String)
					if !ok {
						return types.NewErr("pathDir: invalid string value")
					}

					return types.String(path.Dir(string(pathValue)))
				}),
			),
		),

		// `pathExt` returns the file extension of the path.
		// Example: pathExt(document) == ".html".
		cel.Function("pathExt",
			cel.Overload("path_ext", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(p ref.Val) ref.Val {
					pathValue, ok := p.(types.String)
					if !ok {
						return types.NewErr("pathExt: invalid string value")
					}

					return types.String(path.Ext(string(pathValue)))
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// ConvertToCELValue converts a Go value to a CEL value.
// Handles the types produced by the JSON, YAML, TOML and CUE data decoders and
// returns null for unsupported types. Unsigned integers become CEL ints so
// that `data.x.count == 1` holds regardless of the source format.
//
//nolint:ireturn // Following CEL's function signature.
func ConvertToCELValue(value any) ref.Val {
	switch v := value.(type) {
	case nil:
		return types.NullValue

	case bool:
		return types.Bool(v)

	case int:
		return types.Int(v)

	case int8:
		return types.Int(int64(v))

	case int16:
		return types.Int(int64(v))

	case int32:
		return types.Int(int64(v))

	case int64:
		return types.Int(v)

	case uint:
		// Check for overflow when converting to int64.
		if v > math.MaxInt64 {
			return types.Double(float64(v))
		}

		return types.Int(int64(v))

	case uint8:
		return types.Int(int64(v))

	case uint16:
		return types.Int(int64(v))

	case uint32:
		return types.Int(int64(v))

	case uint64:
		// Check for overflow when converting to int64.
		if v > math.MaxInt64 {
			return types.Double(float64(v))
		}

		return types.Int(int64(v))

	case float32:
		return types.Double(float64(v))

	case float64:
		return types.Double(v)

	case string:
		return types.String(v)

	case []any:
		// Convert slice to CEL list.
		celValues := make([]ref.Val, len(v))
		for i, item := range v {
			celValues[i] = ConvertToCELValue(item)
		}

		return types.NewDynamicList(types.DefaultTypeAdapter, celValues)

	case map[any]any:
		// Convert map to CEL map.
		celMap := make(map[ref.Val]ref.Val)
		for key, val := range v {
			celKey := ConvertToCELValue(key)
			celVal := ConvertToCELValue(val)
			celMap[celKey] = celVal
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, celMap)

	case map[string]any:
		// Convert string map to CEL map.
		celMap := make(map[ref.Val]ref.Val)
		for key, val := range v {
			celKey := types.String(key)
			celVal := ConvertToCELValue(val)
			celMap[celKey] = celVal
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, celMap)

	case time.Time:
		return types.Timestamp{Time: v}

	case json.Number:
		if i, err := v.Int64(); err == nil {
			return types.Int(i)
		}

		f, err := v.Float64()
		if err != nil {
			return types.String(v.String())
		}

		return types.Double(f)

	case []string:
		return types.NewStringList(types.DefaultTypeAdapter, v)

	case []map[string]any:
		celValues := make([]ref.Val, len(v))
		for i, item := range v {
			celValues[i] = ConvertToCELValue(item)
		}

		return types.NewDynamicList(types.DefaultTypeAdapter, celValues)

	default:
		// For unsupported types, return null instead of erroring.
		return types.NullValue
	}
}
