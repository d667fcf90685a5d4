package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Documents are stored as zstd-compressed JSON. Time-series blobs for a
// full watchlist run to hundreds of KB uncompressed; zstd keeps round-trips
// to the backend cheap.

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

func marshalDoc(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return encoder.EncodeAll(raw, nil), nil
}

func unmarshalDoc(data []byte, dest any) error {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompress document: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	return nil
}
