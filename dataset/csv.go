package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type Options struct {
	// Encoding is a charset label such as "utf-8", "gbk" or "latin1". Empty means UTF-8.
	Encoding string
}

// LoadCSV reads a CSV file with a header row into a Frame.
func LoadCSV(path string, opts Options) (*Frame, error) {
	decoder, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	return ReadCSV(transform.NewReader(file, decoder))
}

// ReadCSV parses UTF-8 CSV content with a header row. Header names are kept verbatim,
// surrounding spaces included. Invalid UTF-8 is a format error.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrFormat, err)
	}
	if err := checkUTF8(header, 0); err != nil {
		return nil, err
	}

	rows := make([][]string, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if err := checkUTF8(record, len(rows)+1); err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return NewFrame(header, rows)
}

func checkUTF8(record []string, row int) error {
	for i, field := range record {
		if utf8.ValidString(field) {
			continue
		}
		if row == 0 {
			return fmt.Errorf("%w: header field %d is not valid UTF-8", ErrFormat, i+1)
		}
		return fmt.Errorf("%w: row %d field %d is not valid UTF-8", ErrFormat, row, i+1)
	}
	return nil
}

// decoderFor returns the charset decoder for label. UTF-8 input passes through
// untouched so ReadCSV can reject invalid bytes instead of seeing U+FFFD.
func decoderFor(label string) (transform.Transformer, error) {
	if label == "" {
		return transform.Nop, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrFormat, label)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return transform.Nop, nil
	}
	return enc.NewDecoder(), nil
}
