package codec

import (
	"github.com/goccy/go-json"
)

// JSONCodec uses goccy/go-json, a drop-in replacement for encoding/json.
// Same wire output as the standard library, less reflection overhead on the
// per-chunk decode path of streaming operations.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}
