package wal

import (
	"fmt"

	"github.com/golang/snappy"
)

// codec transforms payloads between their raw and stored forms
type codec interface {
	encode(data []byte) []byte
	decode(stored []byte) ([]byte, error)
	compressed() bool
}

type rawCodec struct{}

func (rawCodec) encode(data []byte) []byte { return data }

func (rawCodec) decode(stored []byte) ([]byte, error) { return stored, nil }

func (rawCodec) compressed() bool { return false }

type snappyCodec struct{}

func (snappyCodec) encode(data []byte) []byte {
	return snappy.Encode(nil, data)
}

func (snappyCodec) decode(stored []byte) ([]byte, error) {
	data, err := snappy.Decode(nil, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress WAL entry: %w", err)
	}
	return data, nil
}

func (snappyCodec) compressed() bool { return true }
