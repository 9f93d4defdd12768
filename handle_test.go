package btserial

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trickleWriter accepts at most one byte per call.
type trickleWriter struct {
	bytes.Buffer
}

func (w *trickleWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return w.Buffer.Write(p[:1])
}

func (w *trickleWriter) Close() error { return nil }

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }
func (stuckWriter) Close() error { return nil }

type closeRecorder struct {
	name  string
	order *[]string
	err   error
}

func (c *closeRecorder) Read([]byte) (int, error) { return 0, io.EOF }
func (c *closeRecorder) Write(p []byte) (int, error) { return len(p), nil }
func (c *closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestHandle_WriteAllRetriesShortWrites(t *testing.T) {
	w := &trickleWriter{}
	h := NewHandle(io.NopCloser(bytes.NewReader(nil)), w)
	require.NoError(t, h.WriteAll([]byte("payload")))
	require.Equal(t, "payload", w.String())
}

func TestHandle_WriteAllReportsZeroProgress(t *testing.T) {
	h := NewHandle(io.NopCloser(bytes.NewReader(nil)), stuckWriter{})
	err := h.WriteAll([]byte("x"))
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, io.ErrShortWrite)
}

func TestHandle_CloseOrderAndIdempotence(t *testing.T) {
	var order []string
	in := &closeRecorder{name: "in", order: &order}
	out := &closeRecorder{name: "out", order: &order, err: errors.New("broken pipe")}
	h := NewHandle(in, out)

	err := h.Close()
	require.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "broken pipe")
	// A failing output close does not keep the input open.
	require.Equal(t, []string{"out", "in"}, order)
	require.True(t, h.Closed())

	require.NoError(t, h.Close())
	require.Equal(t, []string{"out", "in"}, order)

	require.ErrorIs(t, h.WriteAll([]byte("x")), os.ErrClosed)
	require.NoError(t, h.Flush())
}

type halfCloser struct {
	closeRecorder
}

func (h *halfCloser) CloseWrite() error {
	*h.order = append(*h.order, "close-write")
	return nil
}

func TestStreamHandle_UsesCloseWrite(t *testing.T) {
	var order []string
	s := &halfCloser{closeRecorder{name: "close", order: &order}}
	h := NewStreamHandle(s)
	require.NoError(t, h.Close())
	require.Equal(t, []string{"close-write", "close"}, order)
}

func TestHandle_ReadIntoWrapsErrors(t *testing.T) {
	h := NewHandle(io.NopCloser(bytes.NewReader([]byte("ab"))), stuckWriter{})
	buf := make([]byte, 8)
	n, err := h.ReadInto(buf)
	require.NoError(t, err)
	require.Equal(t, "ab", string(buf[:n]))

	_, err = h.ReadInto(buf)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, io.EOF)
}
