package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// ErrMapKey is returned when a value holds a map whose keys are not
// strings. DAG-CBOR maps are keyed by strings only.
var ErrMapKey = errors.New("codec: map keys must be strings")

var marshalerType = reflect.TypeOf((*cbor.Marshaler)(nil)).Elem()

// scan walks v and reports whether it holds a float32 anywhere. It fails
// on maps with non-string keys.
func scan(v reflect.Value) (bool, error) {
	if !v.IsValid() {
		return false, nil
	}
	if v.Type().Implements(marshalerType) {
		return false, nil
	}
	switch v.Kind() {
	case reflect.Float32:
		return true, nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return false, nil
		}
		return scan(v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return false, nil
		}
		found := false
		for i := 0; i < v.Len(); i++ {
			f, err := scan(v.Index(i))
			if err != nil {
				return false, err
			}
			found = found || f
		}
		return found, nil
	case reflect.Map:
		found := false
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key()
			if k.Kind() == reflect.Interface && !k.IsNil() {
				k = k.Elem()
			}
			if k.Kind() != reflect.String {
				return false, fmt.Errorf("%w: got %s", ErrMapKey, k.Type())
			}
			f, err := scan(iter.Value())
			if err != nil {
				return false, err
			}
			found = found || f
		}
		return found, nil
	case reflect.Struct:
		found := false
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() || t.Field(i).Tag.Get("cbor") == "-" {
				continue
			}
			f, err := scan(v.Field(i))
			if err != nil {
				return false, err
			}
			found = found || f
		}
		return found, nil
	default:
		return false, nil
	}
}
