package core

// streaming.go prepares an export's byte stream for the CSV reader.
//
// Tool exports arrive in whatever encoding the tool (or the spreadsheet it
// passed through) chose. Keyword Planner writes UTF-16LE with a BOM, Excel
// re-saves as Windows-1252, most others write UTF-8 with or without a BOM.
// DecodeStream sniffs the leading bytes and returns a UTF-8 reader:
//
//   - UTF-8 BOM: stripped, remaining bytes sanitised
//   - UTF-16 BOM: transcoded through golang.org/x/text
//   - invalid UTF-8 in the sniffed prefix: decoded as Windows-1252
//   - otherwise: UTF-8, stray invalid bytes replaced with '?'
//
// Byte counting sits below decoding so progress is measured against the
// original file size.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported in FileMeta.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
)

// sniffSize is how many leading bytes are inspected for encoding.
const sniffSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeStream wraps r so it yields UTF-8 and reports the detected
// encoding.
func DecodeStream(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", err
	}

	switch {
	case bytes.HasPrefix(head, bomUTF8):
		if _, err := br.Discard(len(bomUTF8)); err != nil {
			return nil, "", err
		}
		return NewStreamingUTF8Sanitizer(br), EncodingUTF8BOM, nil

	case bytes.HasPrefix(head, bomUTF16LE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		return transform.NewReader(br, dec), EncodingUTF16LE, nil

	case bytes.HasPrefix(head, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		return transform.NewReader(br, dec), EncodingUTF16BE, nil

	case !validUTF8Prefix(head, err == io.EOF):
		return transform.NewReader(br, charmap.Windows1252.NewDecoder()), EncodingWindows1252, nil
	}

	return NewStreamingUTF8Sanitizer(br), EncodingUTF8, nil
}

// validUTF8Prefix reports whether head is valid UTF-8, allowing a multi
// byte sequence cut off by the sniff window.
func validUTF8Prefix(head []byte, atEOF bool) bool {
	if !atEOF {
		head = head[:len(head)-incompleteTrailingBytes(head)]
	}
	return utf8.Valid(head)
}

// StreamingUTF8Sanitizer replaces invalid UTF-8 bytes with '?' while
// streaming, holding back a trailing partial sequence until the next read.
type StreamingUTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isAllASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes ready
// for the caller.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if r == utf8.RuneError && size == 1 {
			if !atEOF && isIncompleteRune(data[read:]) {
				s.pending = append(s.pending, data[read:]...)
				return write
			}
			// '?' keeps the output no longer than the input.
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTrailingBytes counts bytes at the end of data that begin a
// multi-byte sequence without finishing it.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	}
	return 4
}

// isIncompleteRune reports whether data is the start of a multi-byte
// sequence that the buffer cut short.
func isIncompleteRune(data []byte) bool {
	if len(data) == 0 || runeLen(data[0]) <= len(data) {
		return false
	}
	for _, b := range data[1:] {
		if b&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// CountingReader tracks bytes read so ingestion can report progress.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Fraction returns the share of Total consumed, in [0,1]. It is 0 when
// the total is unknown.
func (r *CountingReader) Fraction() float64 {
	if r.Total <= 0 {
		return 0
	}
	f := float64(r.BytesRead) / float64(r.Total)
	if f > 1 {
		return 1
	}
	return f
}
