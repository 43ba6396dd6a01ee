package engine

import (
	"encoding/json"
)

// Codec carries engine messages as plain JSON over connect. The engine's
// messages are Go structs, not generated protobuf types.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
