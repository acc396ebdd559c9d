package codec

import "encoding/json"

// JSON is the default codec. Payloads stay readable from any other client of
// the shared store.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (JSON) Decode(b []byte, dest any) error { return json.Unmarshal(b, dest) }
