package dbuslink

import (
	"reflect"

	"github.com/godbus/dbus/v5"
	"github.com/yllada/connman-indicator/connman"
)

func normalizeAll(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = normalize(v)
	}
	return out
}

// normalize strips D-Bus wrappers from a decoded value. Variants are
// unwrapped, object paths become strings, string-keyed maps become
// map[string]interface{} and other slices (structs included) become
// []interface{}. String lists and byte arrays are kept as they are.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case dbus.Variant:
		return normalize(x.Value())
	case dbus.ObjectPath:
		return string(x)
	case dbus.Signature:
		return x.String()
	case string, bool, uint8, int16, uint16, int32, uint32, int64, uint64, float64:
		return x
	case []string, []byte:
		return x
	case []dbus.ObjectPath:
		out := make([]string, len(x))
		for i, p := range x {
			out[i] = string(p)
		}
		return out
	case map[string]dbus.Variant:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = normalize(val.Value())
		}
		return out
	case []interface{}:
		return normalizeAll(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

// toWire converts engine call arguments into values godbus can encode.
func toWire(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		if v, ok := arg.(connman.Variant); ok {
			out[i] = dbus.MakeVariant(v.Value)
			continue
		}
		out[i] = arg
	}
	return out
}
