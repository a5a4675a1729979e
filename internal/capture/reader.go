package capture

import (
	"context"
	"io"
	"sync"
)

// ReaderSource adapts an io.Reader, such as a pipe from another tool, into a
// capture source. Closing is delegated when the reader is an io.Closer.
type ReaderSource struct {
	Label  string
	Reader io.Reader
}

// Name implements Source.
func (s *ReaderSource) Name() string {
	if s.Label == "" {
		return "reader"
	}
	return s.Label
}

// Acquire implements Source.
func (s *ReaderSource) Acquire(context.Context) (Device, error) {
	if s.Reader == nil {
		return nil, acquireError(s.Name(), "no reader", nil)
	}
	return &readerDevice{r: s.Reader}, nil
}

type readerDevice struct {
	r    io.Reader
	once sync.Once
	err  error
}

func (d *readerDevice) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *readerDevice) Release() error {
	d.once.Do(func() {
		if closer, ok := d.r.(io.Closer); ok {
			d.err = closer.Close()
		}
	})
	return d.err
}
