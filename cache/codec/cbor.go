package codec

import "github.com/fxamacker/cbor/v2"

// CBOR serializes values using fxamacker/cbor/v2 (RFC 8949). The zero value
// uses the library's default encoding options.
type CBOR struct{}

func (CBOR) Encode(v any) ([]byte, error)    { return cbor.Marshal(v) }
func (CBOR) Decode(b []byte, dest any) error { return cbor.Unmarshal(b, dest) }
