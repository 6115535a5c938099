package ingestion

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// MaxLineSize is the longest log line the Reader decodes. Longer lines are
// skipped and reported as a ParseFailure whose Cause wraps ErrLineTooLong.
const MaxLineSize = 16 << 20

const readBufferSize = 64 << 10

var errNotObject = errors.New("line is not a JSON object")

// Reader reads records from newline-delimited JSON, one per non-blank line.
//
// Next returns a *ParseFailure (matching ErrMalformedRecord) for a line that does
// not decode or is longer than MaxLineSize; reading may continue afterwards. Any
// other error is a read failure and ends the stream. io.EOF marks the end of input.
type Reader struct {
	reader  *bufio.Reader
	buf     []byte
	maxLine int
	index   int
	line    int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return newReaderSize(r, MaxLineSize)
}

func newReaderSize(r io.Reader, maxLine int) *Reader {
	return &Reader{
		reader:  bufio.NewReaderSize(r, readBufferSize),
		maxLine: maxLine,
	}
}

// Next returns the next record.
func (r *Reader) Next() (*Record, error) {
	for {
		raw, tooLong, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", r.line+1, err)
		}

		r.line++

		if tooLong {
			index := r.index
			r.index++

			return nil, &ParseFailure{
				Index: index,
				Line:  r.line,
				Cause: fmt.Errorf("%w (limit %d bytes)", ErrLineTooLong, r.maxLine),
			}
		}

		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		index := r.index
		r.index++

		return ParseLine(raw, index, r.line)
	}
}

// readLine returns the next physical line without its terminator. The bytes of a
// line longer than maxLine are dropped as they are read and tooLong is set.
// The returned slice is only valid until the next call.
func (r *Reader) readLine() ([]byte, bool, error) {
	r.buf = r.buf[:0]
	read := 0
	tooLong := false

	for {
		chunk, err := r.reader.ReadSlice('\n')
		read += len(chunk)

		if !tooLong {
			r.buf = append(r.buf, chunk...)
			if len(bytes.TrimRight(r.buf, "\r\n")) > r.maxLine {
				tooLong = true
				r.buf = r.buf[:0]
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return nil, false, io.EOF
			}
		case err != nil:
			return nil, false, err
		}

		return bytes.TrimRight(r.buf, "\r\n"), tooLong, nil
	}
}

// ParseLine decodes one non-blank line. index is the 0-based position among
// non-blank lines and line the 1-based physical line number.
func ParseLine(raw []byte, index, line int) (*Record, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ParseFailure{Index: index, Line: line, Text: string(raw), Cause: err}
	}

	if fields == nil {
		return nil, &ParseFailure{Index: index, Line: line, Text: string(raw), Cause: errNotObject}
	}

	props, _ := fields[propertiesKey].(map[string]any)

	rec := &Record{
		Index:      index,
		Line:       line,
		Fields:     fields,
		Properties: props,
	}

	rec.Type, _ = ResolveType(fields, props)
	rec.UserID, _ = ResolveUserID(fields, props)
	rec.RawTime, rec.TimePresent, rec.Time = ResolveTime(fields, props)

	if rec.IsTrack() {
		rec.EventName, _ = ResolveEventName(fields, props)
	}

	return rec, nil
}
