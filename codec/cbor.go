package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"

	"xdao.co/oplog/cidutil"
)

// majorTypeByteString is the CBOR major type of a definite byte string.
const majorTypeByteString = 2

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// DAG-CBOR orders map keys by encoded length first. Core deterministic
	// encoding sorts bytewise, which differs once keys have mixed lengths.
	encOptions.Sort = cbor.SortLengthFirst
	encOptions.ShortestFloat = cbor.ShortestFloatNone
	encOptions.InfConvert = cbor.InfConvertNone
	// A nil slice and an empty slice are the same logical value; both
	// must hash the same.
	encOptions.NilContainers = cbor.NilContainerAsEmpty
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Untyped maps (payload values) decode to map[string]any rather
		// than map[interface{}]interface{}.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IndefLength:    cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v canonically. Floats are written as 64-bit: a value
// holding float32 is encoded as the float64 a reader decodes it to. Maps
// with non-string keys fail with ErrMapKey.
func Marshal(v any) ([]byte, error) {
	hasFloat32, err := scan(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(v)
	if err != nil || !hasFloat32 {
		return data, err
	}
	var widened any
	if err := decMode.Unmarshal(data, &widened); err != nil {
		return nil, err
	}
	return encMode.Marshal(widened)
}

// Unmarshal decodes canonical CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encode canonically encodes v and returns the content address of the
// resulting bytes alongside them.
func Encode(v any) (cid.Cid, []byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("codec: encoding block: %w", err)
	}
	id, err := cidutil.CIDv1DagCBORSHA256CID(data)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("codec: hashing block: %w", err)
	}
	return id, data, nil
}

// Decode decodes data into v and returns the content address of data.
func Decode(data []byte, v any) (cid.Cid, error) {
	if err := Unmarshal(data, v); err != nil {
		return cid.Undef, fmt.Errorf("codec: decoding block: %w", err)
	}
	id, err := cidutil.CIDv1DagCBORSHA256CID(data)
	if err != nil {
		return cid.Undef, fmt.Errorf("codec: hashing block: %w", err)
	}
	return id, nil
}

// IsBytes reports whether the top-level item of data is a CBOR byte
// string, the shape of an opaque ciphertext block.
func IsBytes(data []byte) bool {
	return len(data) > 0 && data[0]>>5 == majorTypeByteString
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
