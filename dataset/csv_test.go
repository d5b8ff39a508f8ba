package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCols []string
		wantRows int
		wantErr  bool
	}{
		{
			name:     "header and rows",
			input:    "id,price,room_type\n1,10,Private room\n2,20,Entire home/apt\n",
			wantCols: []string{"id", "price", "room_type"},
			wantRows: 2,
		},
		{
			name:     "header only",
			input:    "price,minimum_nights\n",
			wantCols: []string{"price", "minimum_nights"},
			wantRows: 0,
		},
		{
			name:     "utf8 bom is stripped",
			input:    "\ufeffprice,x\n1,2\n",
			wantCols: []string{"price", "x"},
			wantRows: 1,
		},
		{
			name:     "duplicate headers are renamed",
			input:    "a,a,a.1,a\n1,2,3,4\n",
			wantCols: []string{"a", "a.2", "a.1", "a.3"},
			wantRows: 1,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "ragged row",
			input:   "price,x\n1,2\n3\n",
			wantErr: true,
		},
		{
			name:     "header names keep surrounding spaces",
			input:    " price ,x\n1,2\n",
			wantCols: []string{" price ", "x"},
			wantRows: 1,
		},
		{
			name:    "invalid utf8 in a cell",
			input:   "price,room\n10,\xff\xfe\n",
			wantErr: true,
		},
		{
			name:    "invalid utf8 in the header",
			input:   "price,r\xffom\n10,a\n",
			wantErr: true,
		},
		{
			name:    "unterminated quote",
			input:   "price,x\n\"1,2\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrFormat) {
					t.Fatalf("expected ErrFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := frame.Columns(); strings.Join(got, "|") != strings.Join(tt.wantCols, "|") {
				t.Fatalf("expected columns %v, got %v", tt.wantCols, got)
			}
			if frame.Len() != tt.wantRows {
				t.Fatalf("expected %d rows, got %d", tt.wantRows, frame.Len())
			}
		})
	}
}

func TestLoadCSVWithEncoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin1.csv")
	// "café" in ISO-8859-1
	content := []byte("neighbourhood,price\ncaf\xe9,12\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame, err := LoadCSV(path, Options{Encoding: "latin1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := frame.Value(0, 0); got != "café" {
		t.Fatalf("expected café, got %q", got)
	}

	if _, err := LoadCSV(path, Options{Encoding: "no-such-charset"}); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for unknown charset, got %v", err)
	}
}

func TestLoadCSVRejectsInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_data.csv")
	if err := os.WriteFile(path, []byte("price,room\n10,\xff\xfe\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, encoding := range []string{"", "utf-8", "UTF8"} {
		if _, err := LoadCSV(path, Options{Encoding: encoding}); !errors.Is(err, ErrFormat) {
			t.Fatalf("encoding %q: expected ErrFormat, got %v", encoding, err)
		}
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSplitTarget(t *testing.T) {
	frame, err := ReadCSV(strings.NewReader("minimum_nights,price,room_type\n1,10,a\n2,20.5,b\n3,30,c\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	y, x, err := frame.SplitTarget("price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{10, 20.5, 30}
	if len(y) != len(want) {
		t.Fatalf("expected %d targets, got %d", len(want), len(y))
	}
	for i := range want {
		if y[i] != want[i] {
			t.Fatalf("target %d: expected %v, got %v", i, want[i], y[i])
		}
	}
	if got := strings.Join(x.Columns(), ","); got != "minimum_nights,room_type" {
		t.Fatalf("unexpected feature columns: %s", got)
	}
	if x.Len() != 3 {
		t.Fatalf("expected 3 feature rows, got %d", x.Len())
	}
	if x.Value(1, 1) != "b" {
		t.Fatalf("expected row values to follow columns, got %q", x.Value(1, 1))
	}
	if _, ok := frame.Column("price"); !ok {
		t.Fatal("split must not modify the source frame")
	}
}

func TestSplitTargetErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing column", input: "x,y\n1,2\n"},
		{name: "missing value", input: "x,price\n1,\n"},
		{name: "non numeric", input: "x,price\n1,cheap\n"},
		{name: "infinite", input: "x,price\n1,inf\n"},
		{name: "negative infinity", input: "x,price\n1,-Infinity\n"},
		{name: "padded header", input: " price ,x\n1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ReadCSV(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, _, err := frame.SplitTarget("price"); !errors.Is(err, ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestFrameFloat(t *testing.T) {
	frame, err := NewFrame([]string{"a"}, [][]string{{"1.5"}, {"NA"}, {"x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, err := frame.Float(0, 0); err != nil || v != 1.5 {
		t.Fatalf("expected 1.5, got %v (%v)", v, err)
	}
	if v, err := frame.Float(1, 0); err != nil || !math.IsNaN(v) {
		t.Fatalf("expected NaN for missing cell, got %v (%v)", v, err)
	}
	if _, err := frame.Float(2, 0); err == nil {
		t.Fatal("expected parse error")
	}
}
