package store

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Serialize encodes v with msgpack, using json tags where no msgpack tag is set.
func Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes msgpack data produced by Serialize into v.
func Deserialize(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
