package grpc

import (
	"encoding/json"
	"fmt"
)

// jsonCodec lets grpc.Server carry nexusv1's plain JSON-tagged structs
// over the wire instead of protobuf, while keeping everything else about
// gRPC (HTTP/2 framing, deadlines, streaming, status codes) unchanged.
// Registered globally via encoding.RegisterCodec in this package's init
// (server.go).
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpc: json codec: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("grpc: json codec: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return "json" }
