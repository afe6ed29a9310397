package snapshot

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wricardo/boardgame-tracker/game/engine"
)

const (
	// CompressedExt marks zstd compressed exports
	CompressedExt = ".zst"

	// maxSnapshotBytes bounds a decoded export
	maxSnapshotBytes = 8 << 20
)

// ErrMalformed is returned for any export that cannot be imported
var ErrMalformed = errors.New("malformed board snapshot")

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

//go:embed board.schema.json
var boardSchemaJSON string

var boardSchema = jsonschema.MustCompileString("board.schema.json", boardSchemaJSON)

// IsCompressed reports whether data starts with a zstd frame
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Encode writes tiles as indented JSON, zstd compressed when compress is set
func Encode(w io.Writer, tiles []engine.Tile, compress bool) error {
	if tiles == nil {
		tiles = []engine.Tile{}
	}
	if !compress {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tiles)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(zw)
	enc := json.NewEncoder(bw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tiles); err != nil {
		zw.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Marshal is Encode into a byte slice
func Marshal(tiles []engine.Tile, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, tiles, compress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes an export, compressed or not. The document must be a
// non-empty list of tile-shaped records; nothing deeper is checked since the
// board repairs ids and connections itself. Every failure wraps ErrMalformed.
func Unmarshal(data []byte) ([]engine.Tile, error) {
	if IsCompressed(data) {
		raw, err := decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		data = raw
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}
	if err := boardSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var tiles []engine.Tile
	if err := json.Unmarshal(data, &tiles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := engine.ValidateTiles(tiles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return tiles, nil
}

// Decode reads a whole export from r
func Decode(r io.Reader) ([]engine.Tile, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSnapshotBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSnapshotBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrMalformed, maxSnapshotBytes)
	}
	return Unmarshal(data)
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out, err := io.ReadAll(io.LimitReader(dec, maxSnapshotBytes+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxSnapshotBytes {
		return nil, fmt.Errorf("decompressed export larger than %d bytes", maxSnapshotBytes)
	}
	return out, nil
}

// ReadFile loads an export from disk
func ReadFile(path string) ([]engine.Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile saves tiles to path, compressing when the name ends in .zst.
// The file is written to a temporary name first and renamed into place.
func WriteFile(path string, tiles []engine.Tile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".board-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := Encode(tmp, tiles, strings.HasSuffix(path, CompressedExt)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode board: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
