package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values using vmihailenco/msgpack/v5. Compact and fast;
// be mindful of struct tag differences vs JSON. Use `msgpack:"fieldName"`
// tags if you need explicit control.
type Msgpack struct{}

func (Msgpack) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (Msgpack) Decode(b []byte, dest any) error { return msgpack.Unmarshal(b, dest) }
