// Package codec translates cache values to and from the byte payloads both
// store tiers hold. Keeping serialization out of the tiers is what lets the
// remote and in-process stores stay substitutable for the same key.
package codec

// Codec encodes values to []byte for storage and decodes payloads into a
// caller-supplied destination.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte, dest any) error
}
