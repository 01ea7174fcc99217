package stormcbor

import (
	"github.com/fxamacker/cbor/v2"
)

const name = "cbor"

// Codec that encodes to and decodes from CBOR (Concise Binary Object Representation).
// https://www.rfc-editor.org/rfc/rfc8949
//
// Field names follow the cbor struct tags, then the json ones.
// Times are encoded as RFC3339 strings with nanoseconds so they round-trip without loss.
var Codec = newCodec()

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCodec() *cborCodec {
	enc, err := cbor.EncOptions{
		Time: cbor.TimeRFC3339Nano,
		Sort: cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(err)
	}

	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}

	return &cborCodec{
		enc: enc,
		dec: dec,
	}
}

func (c *cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *cborCodec) Unmarshal(b []byte, v any) error {
	return c.dec.Unmarshal(b, v)
}

func (c *cborCodec) Name() string {
	return name
}
