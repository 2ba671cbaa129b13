package wire

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNotRewindable is returned by Rewind on bodies that can only be read once.
var ErrNotRewindable = errors.New("wire: body cannot be rewound")

// Body is a request payload.
//
// Rewindable bodies can be replayed for a retried attempt. Len returns the
// payload size in bytes, or -1 when it is unknown.
type Body interface {
	io.Reader
	Rewind() error
	Rewindable() bool
	Len() int64
}

// Compile-time interface checks.
var (
	_ Body = (*bytesBody)(nil)
	_ Body = (*streamBody)(nil)
	_ Body = (*PullBody)(nil)
)

type bytesBody struct {
	r *bytes.Reader
}

// BytesBody returns a rewindable body over b.
func BytesBody(b []byte) Body {
	return &bytesBody{r: bytes.NewReader(b)}
}

// StringBody returns a rewindable body over s.
func StringBody(s string) Body {
	return BytesBody([]byte(s))
}

func (b *bytesBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *bytesBody) Rewindable() bool           { return true }
func (b *bytesBody) Len() int64                 { return b.r.Size() }

func (b *bytesBody) Rewind() error {
	_, err := b.r.Seek(0, io.SeekStart)
	return err
}

type streamBody struct {
	r    io.Reader
	size int64
}

// StreamBody wraps a one-shot reader. The resulting body is never rewindable,
// which makes any request carrying it ineligible for retries.
func StreamBody(r io.Reader, size int64) Body {
	if size < 0 {
		size = -1
	}
	return &streamBody{r: r, size: size}
}

func (b *streamBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *streamBody) Rewindable() bool           { return false }
func (b *streamBody) Len() int64                 { return b.size }
func (b *streamBody) Rewind() error              { return ErrNotRewindable }

// Producer writes the next chunk of a streamed payload. It returns io.EOF once
// the payload is complete.
type Producer func(ctx context.Context) ([]byte, error)

// PullBody streams a payload produced on demand. The producer is only asked
// for the next chunk after the previous one has been consumed by the reader,
// so a slow transport applies backpressure to the producer.
//
// A PullBody is not rewindable.
type PullBody struct {
	ctx     context.Context
	produce Producer

	once   sync.Once
	pr     *io.PipeReader
	pw     *io.PipeWriter
	cancel context.CancelFunc
}

// NewPullBody creates a PullBody. Production starts on the first Read.
func NewPullBody(ctx context.Context, produce Producer) *PullBody {
	return &PullBody{ctx: ctx, produce: produce}
}

func (b *PullBody) start() {
	b.once.Do(func() {
		ctx, cancel := context.WithCancel(b.ctx)
		b.cancel = cancel
		b.pr, b.pw = io.Pipe()
		go b.pump(ctx)
	})
}

// pump hands chunks to the pipe one at a time. io.Pipe blocks each Write
// until the reader has consumed it.
func (b *PullBody) pump(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			b.pw.CloseWithError(err)
			return
		}
		chunk, err := b.produce(ctx)
		if len(chunk) > 0 {
			if _, werr := b.pw.Write(chunk); werr != nil {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			b.pw.Close()
			return
		}
		if err != nil {
			b.pw.CloseWithError(err)
			return
		}
	}
}

// Read implements io.Reader.
func (b *PullBody) Read(p []byte) (int, error) {
	b.start()
	return b.pr.Read(p)
}

// Close stops the producer and releases the pipe.
func (b *PullBody) Close() error {
	b.start()
	b.cancel()
	return b.pr.Close()
}

func (b *PullBody) Rewindable() bool { return false }
func (b *PullBody) Len() int64       { return -1 }
func (b *PullBody) Rewind() error    { return ErrNotRewindable }

// ReadAllAndRewind drains a rewindable body and rewinds it so the next reader
// sees the full payload again.
func ReadAllAndRewind(b Body) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	if !b.Rewindable() {
		return nil, ErrNotRewindable
	}
	if err := b.Rewind(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(b)
	if err != nil {
		return nil, err
	}
	return data, b.Rewind()
}
