package flags

import (
	"bytes"
	"encoding/json"
)

// GetFeatureValue resolves key and converts the value to T. It returns def
// when the flag is unknown, has no value, or holds a value of another shape.
func GetFeatureValue[T any](r *Resolver, key Key, def T) T {
	snap := r.current()
	ev := r.resolve(snap, key)

	out, ok := convert[T](ev.Value)
	if !ok {
		out = def
	}

	r.track(snap, ev, out)
	return out
}

// convert asserts scalars directly and round-trips everything else through
// JSON, which both coerces shapes (float64 to int, map to struct) and hands
// the caller a copy. Objects with fields T does not declare are rejected.
func convert[T any](v any) (T, bool) {
	var zero T
	if v == nil {
		return zero, false
	}

	switch v.(type) {
	case bool, string, float64, int, int64:
		if t, ok := v.(T); ok {
			return t, true
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return zero, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var out T
	if err := dec.Decode(&out); err != nil {
		return zero, false
	}
	return out, true
}

// cloneValue returns a deep copy of a definition value so nothing handed out
// aliases a published snapshot. Scalars are returned as-is.
func cloneValue(v any) any {
	switch v.(type) {
	case nil, bool, string, float64, int, int64:
		return v
	}
	out, ok := convert[any](v)
	if !ok {
		return nil
	}
	return out
}
