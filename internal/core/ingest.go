package core

// ingest.go turns an uploaded export into header-keyed rows.
//
// Parsing streams the file through DecodeStream and encoding/csv in chunks
// of ChunkRows rows, reporting byte progress between chunks. Only the size
// ceiling and the file-type check abort; every structural problem is
// collected into ParseResult.Errors next to whatever data could be read.

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrFileTooLarge is returned when a file exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidFileType is returned for files that are neither named nor
	// declared as CSV/TSV.
	ErrInvalidFileType = errors.New("invalid file type")
)

const (
	// DefaultMaxFileSize is the size ceiling when none is configured.
	DefaultMaxFileSize int64 = 50 << 20

	// DefaultChunkRows is the number of rows between progress reports.
	DefaultChunkRows = 500

	// MaxHeaderSearchRows bounds how far title rows are skipped when
	// looking for the header line.
	MaxHeaderSearchRows = 20
)

// csvMimeTypes are the declared types accepted without a .csv/.tsv name.
var csvMimeTypes = map[string]bool{
	"text/csv":                    true,
	"application/csv":             true,
	"text/x-csv":                  true,
	"application/x-csv":           true,
	"text/comma-separated-values": true,
	"text/tab-separated-values":   true,
	"application/vnd.ms-excel":    true,
}

// ParseErrorType classifies ingestion problems.
type ParseErrorType string

const (
	ParseErrParsing    ParseErrorType = "parsing"
	ParseErrFormat     ParseErrorType = "format"
	ParseErrValidation ParseErrorType = "validation"
)

// ParseError is a non-fatal ingestion problem. Row is the 1-based data row
// index, or 0 for file-level problems.
type ParseError struct {
	Type    ParseErrorType `json:"type"`
	Row     int            `json:"row,omitempty"`
	Column  string         `json:"column,omitempty"`
	Message string         `json:"message"`
}

// FileMeta describes the parsed file.
type FileMeta struct {
	RowCount            int    `json:"rowCount"`
	FileSize            int64  `json:"fileSize"`
	Encoding            string `json:"encoding"`
	HasHeaders          bool   `json:"hasHeaders"`
	Delimiter           string `json:"delimiter"`
	SkippedPreambleRows int    `json:"skippedPreambleRows,omitempty"`
}

// ParseResult is the output of Ingestor.Parse.
type ParseResult struct {
	Rows    []RawRow     `json:"-"`
	Headers []string     `json:"headers"`
	Errors  []ParseError `json:"errors"`
	Meta    FileMeta     `json:"meta"`
}

// ProgressFunc receives the fraction of the file consumed, in [0,1].
type ProgressFunc func(fraction float64)

// Ingestor parses keyword exports.
type Ingestor struct {
	MaxFileSize int64
	ChunkRows   int
}

// NewIngestor returns an Ingestor, substituting defaults for non-positive
// settings.
func NewIngestor(maxFileSize int64, chunkRows int) *Ingestor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	return &Ingestor{MaxFileSize: maxFileSize, ChunkRows: chunkRows}
}

// CheckFile applies the size and type preconditions.
func (in *Ingestor) CheckFile(filename, mimeType string, size int64) error {
	if size > in.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrFileTooLarge, size, in.MaxFileSize)
	}
	if !isCSVFile(filename, mimeType) {
		return fmt.Errorf("%w: %q (%s) is not a CSV or TSV file", ErrInvalidFileType, filename, mimeType)
	}
	return nil
}

func isCSVFile(filename, mimeType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv":
		return true
	}
	if mimeType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return csvMimeTypes[mt]
}

// Parse parses an in-memory file.
func (in *Ingestor) Parse(ctx context.Context, data []byte, filename, mimeType string, progress ProgressFunc) (*ParseResult, error) {
	return in.ParseReader(ctx, bytes.NewReader(data), int64(len(data)), filename, mimeType, progress)
}

// ParseReader parses a streamed file of the given size (0 if unknown).
func (in *Ingestor) ParseReader(ctx context.Context, r io.Reader, size int64, filename, mimeType string, progress ProgressFunc) (*ParseResult, error) {
	if err := in.CheckFile(filename, mimeType, size); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(float64) {}
	}

	counter := NewCountingReader(io.LimitReader(r, in.MaxFileSize+1), size)
	decoded, encoding, err := DecodeStream(counter)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	buffered := bufio.NewReaderSize(decoded, sniffSize)
	delim := detectDelimiter(buffered, filename, mimeType)

	cr := csv.NewReader(buffered)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	p := &rowParser{
		result: &ParseResult{
			Meta: FileMeta{Encoding: encoding, Delimiter: string(delim)},
		},
	}

	if err := p.readHeader(cr); err != nil {
		return nil, err
	}

	for n := 0; ; n++ {
		if n > 0 && n%in.ChunkRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			progress(counter.Fraction())
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read csv: %w", err)
			}
			p.addError(ParseError{Type: ParseErrParsing, Row: p.dataRows + 1, Message: pe.Err.Error()})
			if rec == nil {
				continue
			}
		}
		p.addRecord(rec)
	}

	if counter.BytesRead > in.MaxFileSize {
		return nil, fmt.Errorf("%w: exceeds limit of %d bytes", ErrFileTooLarge, in.MaxFileSize)
	}
	if size <= 0 {
		size = counter.BytesRead
	}

	p.finish(size)
	progress(1)
	return p.result, nil
}

// detectDelimiter picks tab for TSV files and for content whose leading
// window has more tabs than commas.
func detectDelimiter(br *bufio.Reader, filename, mimeType string) rune {
	if strings.EqualFold(filepath.Ext(filename), ".tsv") {
		return '\t'
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil && mt == "text/tab-separated-values" {
		return '\t'
	}
	head, _ := br.Peek(sniffSize)
	if bytes.Count(head, []byte{'\t'}) > bytes.Count(head, []byte{','}) {
		return '\t'
	}
	return ','
}

// rowParser accumulates a ParseResult record by record.
type rowParser struct {
	result   *ParseResult
	columns  []int // record index of each kept header
	width    int   // field count of the header line
	dataRows int
}

// addError records e. Every sanitized cell and malformed row gets its own
// entry; nothing is capped.
func (p *rowParser) addError(e ParseError) {
	p.result.Errors = append(p.result.Errors, e)
}

// readHeader finds the header line, skipping single-cell title rows when
// a later row within MaxHeaderSearchRows looks like a header.
func (p *rowParser) readHeader(cr *csv.Reader) error {
	var buffered [][]string
	headerAt := -1
	for len(buffered) < MaxHeaderSearchRows {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return fmt.Errorf("read csv: %w", err)
			}
			if rec == nil {
				continue
			}
		}
		buffered = append(buffered, rec)
		if nonEmptyCells(rec) >= 2 {
			headerAt = len(buffered) - 1
			break
		}
	}
	if len(buffered) == 0 {
		return nil
	}
	if headerAt < 0 {
		headerAt = 0
	}

	p.setHeaders(buffered[headerAt])
	p.result.Meta.SkippedPreambleRows = headerAt
	for _, rec := range buffered[headerAt+1:] {
		p.addRecord(rec)
	}
	return nil
}

// setHeaders keeps the first occurrence of each header. Blank header
// cells and repeats are dropped; repeats are reported.
func (p *rowParser) setHeaders(rec []string) {
	p.width = len(rec)
	seen := make(map[string]bool, len(rec))
	for i, raw := range rec {
		h := cleanHeader(raw, i == 0)
		if h == "" {
			continue
		}
		if seen[h] {
			p.addError(ParseError{
				Type:    ParseErrFormat,
				Column:  h,
				Message: fmt.Sprintf("Duplicate header %q; only the first occurrence is used", h),
			})
			continue
		}
		seen[h] = true
		p.result.Headers = append(p.result.Headers, h)
		p.columns = append(p.columns, i)
	}
}

// cleanHeader trims and NFKC-normalises a header cell. A BOM left on the
// first cell by a double-encoded file is removed.
func cleanHeader(s string, first bool) string {
	if first {
		s = strings.TrimPrefix(s, "\ufeff")
	}
	return strings.TrimSpace(norm.NFKC.String(s))
}

func (p *rowParser) addRecord(rec []string) {
	if len(p.result.Headers) == 0 {
		return
	}
	rowNum := p.dataRows + 1

	if nonEmptyCells(rec) == 0 {
		p.dataRows++
		p.addError(ParseError{Type: ParseErrValidation, Row: rowNum, Message: "Row is empty"})
		return
	}
	if len(rec) != p.width {
		p.addError(ParseError{
			Type:    ParseErrParsing,
			Row:     rowNum,
			Message: fmt.Sprintf("Row has %d fields, expected %d", len(rec), p.width),
		})
	}

	row := make(RawRow, len(p.result.Headers))
	for i, h := range p.result.Headers {
		var v string
		if idx := p.columns[i]; idx < len(rec) {
			v = rec[idx]
		}
		if sanitized, ok := SanitizeCell(v); ok {
			v = sanitized
			p.addError(ParseError{
				Type:    ParseErrValidation,
				Row:     rowNum,
				Column:  h,
				Message: "Potential formula injection detected; value was prefixed with a quote",
			})
		}
		row[h] = v
	}
	p.dataRows++
	p.result.Rows = append(p.result.Rows, row)
}

func (p *rowParser) finish(size int64) {
	res := p.result
	res.Meta.FileSize = size
	res.Meta.RowCount = len(res.Rows)
	res.Meta.HasHeaders = len(res.Headers) > 0

	if len(res.Headers) == 0 {
		res.Errors = append(res.Errors, ParseError{Type: ParseErrFormat, Message: "No headers found in file"})
	}
	if len(res.Rows) == 0 {
		res.Errors = append(res.Errors, ParseError{Type: ParseErrFormat, Message: "No data rows found in file"})
	}
}

// SanitizeCell neutralises spreadsheet formula payloads by prefixing a
// quote. It reports whether the value was changed.
func SanitizeCell(v string) (string, bool) {
	if v == "" {
		return v, false
	}
	switch v[0] {
	case '=', '+', '-', '@':
		return "'" + v, true
	}
	return v, false
}

func nonEmptyCells(rec []string) int {
	n := 0
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
