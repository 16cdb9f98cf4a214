// Package codec provides the canonical block encoding used for content
// addressing and signing.
//
// Blocks are CBOR encoded with deterministic options that match the
// DAG-CBOR rules: map keys sorted length-first then bytewise, smallest
// integer encoding, floats always 64-bit (float32 values are widened),
// string-only map keys, no indefinite-length items, and nil slices or maps
// written as empty containers. The same logical value
// always produces the same bytes, so the content hash of a block is stable
// and a signature over a block can be reproduced by any reader.
//
// For plain serialization:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For content-addressed blocks:
//
//	id, data, err := codec.Encode(value)
//	id, err := codec.Decode(data, &value)
//
// Hash strings are rendered by package cidutil.
package codec
