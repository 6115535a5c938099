package ingestion

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_TrackRecord(t *testing.T) {
	rec, err := ParseLine([]byte(`{"type":"track","event":"purchase","distinct_id":"u1",`+
		`"time":1709287200,"properties":{"price":9.99}}`), 4, 7)
	require.NoError(t, err)

	assert.Equal(t, 4, rec.Index)
	assert.Equal(t, 7, rec.Line)
	assert.True(t, rec.IsTrack())
	assert.Equal(t, "purchase", rec.EventName)
	assert.Equal(t, "u1", rec.UserID)
	assert.True(t, rec.TimePresent)
	assert.True(t, rec.Time.Valid)

	price, ok := rec.Property("price")
	assert.True(t, ok)
	assert.InDelta(t, 9.99, price, 0.0001)
}

func TestParseLine_ProfileRecordHasNoEventName(t *testing.T) {
	rec, err := ParseLine([]byte(`{"type":"user_set","event":"ignored","distinct_id":"u1","time":1}`), 0, 1)
	require.NoError(t, err)

	assert.False(t, rec.IsTrack())
	assert.Empty(t, rec.EventName)
}

func TestParseLine_Failures(t *testing.T) {
	for _, line := range []string{`{not json`, `[1,2]`, `"text"`, `null`, `{"a":1`} {
		t.Run(line, func(t *testing.T) {
			rec, err := ParseLine([]byte(line), 2, 3)
			assert.Nil(t, rec)
			require.ErrorIs(t, err, ErrMalformedRecord)

			var failure *ParseFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, 2, failure.Index)
			assert.Equal(t, 3, failure.Line)
			assert.Equal(t, line, failure.Text)
		})
	}
}

func TestReader_SkipsBlankLinesAndContinuesAfterFailures(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"track","event":"a","distinct_id":"u1","time":1}`,
		``,
		`   `,
		`garbage`,
		`{"type":"track","event":"b","distinct_id":"u1","time":2}`,
	}, "\n")

	reader := NewReader(strings.NewReader(input))

	rec, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Index)
	assert.Equal(t, 1, rec.Line)

	_, err = reader.Next()

	var failure *ParseFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Index, "blank lines do not advance the index")
	assert.Equal(t, 4, failure.Line)

	rec, err = reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Index)
	assert.Equal(t, 5, rec.Line)
	assert.Equal(t, "b", rec.EventName)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestReader_ReadErrorIsNotAParseFailure(t *testing.T) {
	_, err := NewReader(failingReader{}).Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedRecord)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestReader_SkipsOverlongLinesAndContinues(t *testing.T) {
	long := `{"type":"track","event":"a","distinct_id":"u1","time":1,"pad":"` +
		strings.Repeat("x", 200) + `"}`

	input := strings.Join([]string{
		`{"type":"track","event":"a","distinct_id":"u1","time":1}`,
		long,
		`{"type":"track","event":"b","distinct_id":"u2","time":2}`,
	}, "\r\n")

	reader := newReaderSize(strings.NewReader(input), 64)

	rec, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)

	_, err = reader.Next()
	require.ErrorIs(t, err, ErrMalformedRecord)

	var failure *ParseFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 2, failure.Line)
	assert.Equal(t, 1, failure.Index)
	assert.Empty(t, failure.Text)
	require.ErrorIs(t, failure.Cause, ErrLineTooLong)

	rec, err = reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Line)
	assert.Equal(t, 2, rec.Index)
	assert.Equal(t, "u2", rec.UserID)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_LineAtLimitIsDecoded(t *testing.T) {
	line := `{"type":"track","event":"a","distinct_id":"u1","time":1}`

	reader := newReaderSize(strings.NewReader(line+"\n"), len(line))

	rec, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", rec.EventName)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_LongLinesSpanningBufferChunks(t *testing.T) {
	pad := strings.Repeat("y", 3*readBufferSize)
	input := `{"type":"track","event":"a","distinct_id":"u1","time":1,"pad":"` + pad + `"}` + "\n" +
		`{"type":"track","event":"b","distinct_id":"u1","time":2}`

	reader := NewReader(strings.NewReader(input))

	rec, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, pad, rec.Fields["pad"])

	rec, err = reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", rec.EventName)
	assert.Equal(t, 2, rec.Line)
}

func TestParseLine_NonScalarIdentifierFallsThrough(t *testing.T) {
	rec, err := ParseLine([]byte(`{"type":"track","event":"a","distinct_id":{},"user_id":"u2","time":1}`), 0, 1)
	require.NoError(t, err)

	assert.Equal(t, "u2", rec.UserID)
	assert.Empty(t, CheckStructure(rec))
}
