package utils

import (
	"bytes"
	"io"
	"sync"

	"github.com/bytedance/sonic"
)

// TeeBody passes reads through to the wrapped body and keeps a copy of the
// first limit bytes. onDone, if set, runs once with that copy when the body
// hits EOF or is closed, whichever comes first.
type TeeBody struct {
	body   io.ReadCloser
	limit  int64
	onDone func([]byte)

	mu   sync.Mutex
	buf  bytes.Buffer
	once sync.Once
}

func NewTeeBody(body io.ReadCloser, limit int64, onDone func([]byte)) *TeeBody {
	return &TeeBody{
		body:   body,
		limit:  limit,
		onDone: onDone,
	}
}

func (b *TeeBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.mu.Lock()
		if remaining := b.limit - int64(b.buf.Len()); remaining > 0 {
			b.buf.Write(p[:min(int64(n), remaining)])
		}
		b.mu.Unlock()
	}
	if err == io.EOF {
		b.finish()
	}
	return n, err
}

func (b *TeeBody) Close() error {
	err := b.body.Close()
	b.finish()
	return err
}

// Bytes returns a copy of what has been kept so far.
func (b *TeeBody) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *TeeBody) finish() {
	b.once.Do(func() {
		if b.onDone != nil {
			b.onDone(b.Bytes())
		}
	})
}

// DecodeBody returns the JSON value held in b, the raw text when b is not
// JSON, or nil when b is empty.
func DecodeBody(b []byte) interface{} {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	var v interface{}
	if err := sonic.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	return v
}
