package tracking

import (
	"errors"
	"testing"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		input      string
		want       Ref
		wantPinned int
		pinned     bool
	}{
		{input: "model_export:prod", want: Ref{Project: "nyc_airbnb", Name: "model_export", Version: "prod"}},
		{input: "test_data.csv:latest", want: Ref{Project: "nyc_airbnb", Name: "test_data.csv", Version: "latest"}},
		{input: "test_data.csv", want: Ref{Project: "nyc_airbnb", Name: "test_data.csv", Version: "latest"}},
		{input: "other/model_export:v3", want: Ref{Project: "other", Name: "model_export", Version: "v3"}, wantPinned: 3, pinned: true},
		{input: "team/other/model_export:v0", want: Ref{Project: "other", Name: "model_export", Version: "v0"}, wantPinned: 0, pinned: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRef(tt.input, "nyc_airbnb")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
			n, pinned := got.Pinned()
			if pinned != tt.pinned || n != tt.wantPinned {
				t.Fatalf("expected pinned=%v/%d, got %v/%d", tt.pinned, tt.wantPinned, pinned, n)
			}
		})
	}
}

func TestParseRefInvalid(t *testing.T) {
	for _, input := range []string{"", "  ", "name:", ":v1", "a/b/c/d:v1", "bad name:v1", "name:bad alias"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseRef(input, "p")
			if !errors.Is(err, ErrInvalidRef) {
				t.Fatalf("expected ErrInvalidRef, got %v", err)
			}
			if !errors.Is(err, ErrArtifactNotFound) {
				t.Fatalf("invalid refs must also match ErrArtifactNotFound, got %v", err)
			}
		})
	}
}
