package queue

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// SQS rejects bodies over 256 KiB. Anything above CompressThreshold is zstd
// compressed and base64 encoded, and the encoding is recorded in the
// AttrContentEncoding message attribute so consumers know to reverse it.
const (
	CompressThreshold = 200 * 1024

	AttrContentEncoding = "content_encoding"
	EncodingZstdBase64  = "zstd+b64"
)

var (
	encoderPool = sync.Pool{
		New: func() any {
			e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
			if err != nil {
				// Unreachable with a nil writer and static options.
				panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
			}
			return e
		},
	}
	decoderPool = sync.Pool{
		New: func() any {
			d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
			}
			return d
		},
	}
)

// EncodeBody prepares raw for an SQS message body. Small bodies pass through
// unchanged with an empty encoding.
func EncodeBody(raw []byte) (body string, encoding string) {
	if len(raw) <= CompressThreshold {
		return string(raw), ""
	}

	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)

	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	return base64.StdEncoding.EncodeToString(compressed), EncodingZstdBase64
}

// DecodeBody reverses EncodeBody.
func DecodeBody(body string, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return []byte(body), nil
	case EncodingZstdBase64:
		compressed, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("queue: invalid base64 body: %w", err)
		}
		dec := decoderPool.Get().(*zstd.Decoder)
		defer decoderPool.Put(dec)

		out, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("queue: zstd decompression failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("queue: unsupported content encoding %q", encoding)
	}
}
