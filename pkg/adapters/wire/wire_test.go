package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

func TestRecordCarriesFrame(t *testing.T) {
	ts := time.Unix(1700000000, 42)
	f := &frame.Frame{
		Data:      []byte{1, 2, 3},
		Width:     640,
		Height:    480,
		Timestamp: ts,
		Source:    "cam0/0001.jpg",
		Labels:    map[string]string{"person": "2"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, FromFrame(7, f)))

	var got Record
	require.NoError(t, ReadMessage(&buf, &got))
	assert.Equal(t, uint64(7), got.Seq)

	back := got.Frame()
	assert.Equal(t, f.Data, back.Data)
	assert.Equal(t, 640, back.Width)
	assert.Equal(t, 480, back.Height)
	assert.True(t, ts.Equal(back.Timestamp))
	assert.Equal(t, f.Source, back.Source)
	assert.Equal(t, f.Labels, back.Labels)
}

func TestZeroTimestampStaysZero(t *testing.T) {
	r := FromFrame(1, &frame.Frame{Data: []byte("x")})
	assert.Equal(t, int64(0), r.Timestamp)
	assert.True(t, r.Frame().Timestamp.IsZero())
}

func TestReadMessageEndOfStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Record{Seq: 1}))
	require.NoError(t, WriteMessage(&buf, Record{Seq: 2}))

	var r Record
	require.NoError(t, ReadMessage(&buf, &r))
	require.NoError(t, ReadMessage(&buf, &r))
	assert.Equal(t, uint64(2), r.Seq)
	assert.ErrorIs(t, ReadMessage(&buf, &r), io.EOF)
}

func TestReadMessageTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Record{Seq: 1, Data: []byte("payload")}))
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])

	var r Record
	err := ReadMessage(truncated, &r)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
}

func TestReadMessageRejectsHugeLength(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxMessageSize+1)

	var r Record
	err := ReadMessage(bytes.NewReader(prefix[:]), &r)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}
