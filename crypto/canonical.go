package crypto

import (
	"bytes"
	"encoding/json"
)

// Canonicalize renders v as compact JSON with object keys sorted at every
// depth. Numbers keep their literal form.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	// encoding/json writes map keys in sorted order
	return json.Marshal(generic)
}
