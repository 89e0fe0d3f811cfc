package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ggonzalez94/defi-intents/internal/config"
	"github.com/ggonzalez94/defi-intents/internal/model"
)

// Render writes env in the configured output mode. --select projects fields of
// data; dotted names ("input_amount.amount_decimal") reach into nested objects.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(normalize(data), settings.SelectFields)
	}

	if settings.ResultsOnly {
		if settings.OutputMode == "plain" {
			return writePlain(w, data)
		}
		return writeJSON(w, data)
	}
	if settings.OutputMode == "plain" {
		if env.Error != nil {
			_, err := fmt.Fprintf(w, "error %s (code %d): %s\n", errorLabel(env.Error), env.Error.Code, env.Error.Message)
			return err
		}
		for _, warning := range env.Warnings {
			if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
				return err
			}
		}
		return writePlain(w, data)
	}
	env.Data = data
	return writeJSON(w, env)
}

func errorLabel(body *model.ErrorBody) string {
	if body.Kind != "" {
		return body.Kind
	}
	return body.Type
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePlain(w io.Writer, data any) error {
	switch t := normalize(data).(type) {
	case nil:
		_, err := fmt.Fprintln(w, "null")
		return err
	case []any:
		if len(t) == 0 {
			_, err := fmt.Fprintln(w, "[]")
			return err
		}
		for _, item := range t {
			if _, err := fmt.Fprintln(w, line(item)); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(w, line(t))
		return err
	}
}

// line flattens one object into sorted key=value pairs.
func line(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		buf, _ := json.Marshal(v)
		return string(buf)
	}
	flat := map[string]string{}
	flatten("", m, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+flat[k])
	}
	return strings.Join(parts, " ")
}

func flatten(prefix string, m map[string]any, dst map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, dst)
		case []any, nil:
			buf, _ := json.Marshal(t)
			dst[key] = string(buf)
		default:
			dst[key] = fmt.Sprint(t)
		}
	}
}

func project(data any, fields []string) any {
	switch t := data.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, projectMap(m, fields))
			}
		}
		return out
	case map[string]any:
		return projectMap(t, fields)
	default:
		return data
	}
}

func projectMap(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := lookup(m, strings.Split(f, ".")); ok {
			out[f] = v
		}
	}
	return out
}

func lookup(m map[string]any, path []string) (any, bool) {
	v, ok := m[path[0]]
	if !ok || len(path) == 1 {
		return v, ok
	}
	next, isMap := v.(map[string]any)
	if !isMap {
		return nil, false
	}
	return lookup(next, path[1:])
}

// normalize round-trips v through JSON so structs honour their tags.
func normalize(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}
