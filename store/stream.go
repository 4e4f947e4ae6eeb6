package store

// ByteSource is a generic random-access byte source: either a real
// mmap-backed file (golang.org/x/exp/mmap.ReaderAt) or an in-memory
// buffer. This mirrors the teacher's Stream interface (reader.go), which
// abstracted "a tiledb VFS handle or an in-memory byte stream" behind a
// two-method interface so the rest of the package never cares which one
// it has; here the same shape abstracts "an mmap'd file or an in-memory
// fixture", which keeps store_test.go free of real file I/O.
type ByteSource interface {
	ReadAt(p []byte, off int64) (int, error)
	Len() int
	Close() error
}

// memSource is an in-memory ByteSource, used by tests.
type memSource struct {
	data []byte
}

func newMemSource(data []byte) *memSource { return &memSource{data: data} }

func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memSource) Len() int    { return len(m.data) }
func (m *memSource) Close() error { return nil }
