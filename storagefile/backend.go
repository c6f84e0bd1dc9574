package storagefile

import "io"

// Backend persists and retrieves the namespace's storage.dat bytes.
// Only FileBackend is load-bearing for correctness; S3Backend and
// CephBackend are best-effort mirrors that never affect what Load
// returns. A mirror write is a plain synchronous call, so a caller that
// runs it inside a flush waits for the upload.
type Backend interface {
	// ReadFull returns the full current contents, or an error if none
	// exists yet.
	ReadFull() ([]byte, error)
	// WriteAtomic replaces the persisted contents with data as a single
	// atomic operation from the reader's point of view.
	WriteAtomic(data []byte) error
	// Backup returns the contents of the previous-generation file, if
	// the backend retains one.
	Backup() ([]byte, error)
}

// ErrorReader is a ReadCloser whose Read always returns Err. None of
// the backends in this package use it.
type ErrorReader struct {
	Err error
}

func (e ErrorReader) Read([]byte) (int, error) { return 0, e.Err }
func (e ErrorReader) Close() error             { return nil }

var _ io.ReadCloser = ErrorReader{}
