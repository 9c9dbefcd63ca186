package recorder

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const (
	encodingGzip    = "gzip"
	encodingDeflate = "deflate"
	encodingZstd    = "zstd"
	encodingNone    = "identity"
)

var errUnsupportedEncoding = errors.New("unsupported content encoding")

// normalizeEncoding canonicalizes a Content-Encoding value. Stacked encodings such as
// "gzip, br" are reported unsupported since they cannot be partially decoded.
func normalizeEncoding(encoding string) (string, bool) {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if strings.Contains(encoding, ",") {
		return "", false
	}
	switch encoding {
	case "", encodingNone:
		return encodingNone, true
	case encodingGzip, "x-gzip":
		return encodingGzip, true
	case encodingDeflate:
		return encodingDeflate, true
	case encodingZstd:
		return encodingZstd, true
	default:
		return encoding, false
	}
}

// decompress decodes data according to its Content-Encoding. Identity returns data as is.
func decompress(data []byte, encoding string) ([]byte, error) {
	normalized, ok := normalizeEncoding(encoding)
	if !ok {
		return nil, errUnsupportedEncoding
	}

	switch normalized {
	case encodingGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = gr.Close() }()
		return io.ReadAll(gr)
	case encodingDeflate:
		// servers send both raw DEFLATE and zlib-wrapped data under "deflate"
		if out, err := io.ReadAll(flate.NewReader(bytes.NewReader(data))); err == nil {
			return out, nil
		}
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = zr.Close() }()
		return io.ReadAll(zr)
	case encodingZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}
