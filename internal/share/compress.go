// Package share implements the shareable-state codec and link builder: it
// compresses a dashboard configuration into a URL-safe token, rebuilds the
// state from a token, and turns tokens into complete shareable URLs.
package share

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Compressor is one reversible text-to-token-payload transform. The codec
// picks a Compressor at encode time and records the choice in the token
// prefix; decode-time selection is driven purely by that prefix.
type Compressor interface {
	// Compress turns canonical JSON text into a URL-safe payload.
	Compress(text string) (string, error)

	// Decompress inverts Compress.
	Decompress(payload string) (string, error)
}

// presetDict seeds the DEFLATE window with the canonical JSON vocabulary of a
// shareable state, so even short single-position configs compress below the
// plain base64 size.
var presetDict = []byte(`{"mode":"single","compare","config":{"configA":{"configB":{"start_date":"end_date":"initial_cash":"positions":[{"ticker":"weight":0.}],"risk_free_rate":0.0,"benchmark_ticker":"rebalance":"none","monthly","daily","fractional_shares":true,false,"risk_free_compounding":"data_provider":"yfinance","mock","stooq"}}`)

// deflateCompressor is the primary scheme: DEFLATE with a preset dictionary,
// base64-rawurl output.
type deflateCompressor struct{}

func (deflateCompressor) Compress(text string) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriterDict(&buf, flate.BestCompression, presetDict)
	if err != nil {
		return "", fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := w.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("compressing state: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("flushing deflate writer: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func (deflateCompressor) Decompress(payload string) (string, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}
	r := flate.NewReaderDict(bytes.NewReader(raw), presetDict)
	defer r.Close()
	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("inflating state: %w", err)
	}
	return string(text), nil
}

// base64Compressor is the guaranteed fallback scheme: plain base64-rawurl of
// the JSON text. It cannot fail on encode.
type base64Compressor struct{}

func (base64Compressor) Compress(text string) (string, error) {
	return base64.RawURLEncoding.EncodeToString([]byte(text)), nil
}

func (base64Compressor) Decompress(payload string) (string, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}
	return string(raw), nil
}

// decodeBase64 accepts any of the four base64 variants. Tokens we emit use
// the raw URL alphabet, but legacy links were produced with standard
// (padded, +/) encoding, and both still arrive in the wild.
func decodeBase64(payload string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	}
	var err error
	for _, enc := range encodings {
		var raw []byte
		if raw, err = enc.DecodeString(payload); err == nil {
			return raw, nil
		}
	}
	return nil, err
}
