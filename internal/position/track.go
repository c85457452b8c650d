package position

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/klauspost/compress/zstd"
)

// LoadTrack reads a recorded track file of newline-delimited JSON samples.
// Files ending in .zst are zstd-decompressed.
func LoadTrack(path string) ([]domain.PositionSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd track: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return ReadTrack(r)
}

// ReadTrack decodes newline-delimited JSON samples, skipping blank lines.
func ReadTrack(r io.Reader) ([]domain.PositionSample, error) {
	var samples []domain.PositionSample
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var s domain.PositionSample
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("track line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	return samples, nil
}

// WriteTrack encodes samples as newline-delimited JSON, zstd-compressed when compress is set.
func WriteTrack(w io.Writer, samples []domain.PositionSample, compress bool) error {
	out := w
	var enc *zstd.Encoder
	if compress {
		var err error
		enc, err = zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		out = enc
	}
	je := json.NewEncoder(out)
	for _, s := range samples {
		if err := je.Encode(s); err != nil {
			return fmt.Errorf("encode sample: %w", err)
		}
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}
