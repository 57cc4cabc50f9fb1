package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestDecodeStream(t *testing.T) {
	tests := []struct {
		name         string
		input        []byte
		wantText     string
		wantEncoding string
	}{
		{
			name:         "plain utf-8",
			input:        []byte("keyword,volume\nseo,10"),
			wantText:     "keyword,volume\nseo,10",
			wantEncoding: EncodingUTF8,
		},
		{
			name:         "utf-8 with BOM",
			input:        append([]byte{0xEF, 0xBB, 0xBF}, []byte("keyword,volume")...),
			wantText:     "keyword,volume",
			wantEncoding: EncodingUTF8BOM,
		},
		{
			name:         "utf-16le with BOM",
			input:        []byte{0xFF, 0xFE, 'a', 0, ',', 0, 'b', 0},
			wantText:     "a,b",
			wantEncoding: EncodingUTF16LE,
		},
		{
			name:         "utf-16be with BOM",
			input:        []byte{0xFE, 0xFF, 0, 'a', 0, ',', 0, 'b'},
			wantText:     "a,b",
			wantEncoding: EncodingUTF16BE,
		},
		{
			name:         "windows-1252",
			input:        []byte("caf\xe9,x"),
			wantText:     "café,x",
			wantEncoding: EncodingWindows1252,
		},
		{
			name:         "empty",
			input:        []byte{},
			wantText:     "",
			wantEncoding: EncodingUTF8,
		},
		{
			name:         "multibyte utf-8",
			input:        []byte("münchen,€5"),
			wantText:     "münchen,€5",
			wantEncoding: EncodingUTF8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, enc, err := DecodeStream(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("DecodeStream() error = %v", err)
			}
			if enc != tt.wantEncoding {
				t.Errorf("encoding = %q, want %q", enc, tt.wantEncoding)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.wantText {
				t.Errorf("text = %q, want %q", got, tt.wantText)
			}
		})
	}
}

func TestStreamingUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("hello,world"), "hello,world"},
		{"valid multibyte", []byte("grüße"), "grüße"},
		{"invalid byte", []byte{'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
		{"truncated sequence at EOF", []byte{'o', 'k', 0xE2, 0x82}, "ok??"},
		{"empty", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewStreamingUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// oneByteReader forces the sanitizer to see multi-byte runes split
// across reads.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestStreamingUTF8Sanitizer_SplitRunes(t *testing.T) {
	in := "€10,düsseldorf"
	got, err := io.ReadAll(NewStreamingUTF8Sanitizer(oneByteReader{strings.NewReader(in)}))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	r := NewCountingReader(strings.NewReader(input), int64(len(input)))

	buf := make([]byte, 250)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := r.Fraction(); got != 0.25 {
		t.Errorf("Fraction() after 250 bytes = %v, want 0.25", got)
	}

	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if r.BytesRead != 1000 {
		t.Errorf("BytesRead = %d, want 1000", r.BytesRead)
	}
	if got := r.Fraction(); got != 1 {
		t.Errorf("Fraction() at EOF = %v, want 1", got)
	}

	unknown := NewCountingReader(strings.NewReader(input), 0)
	_, _ = io.Copy(io.Discard, unknown)
	if got := unknown.Fraction(); got != 0 {
		t.Errorf("Fraction() with unknown total = %v, want 0", got)
	}
}
