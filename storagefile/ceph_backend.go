//go:build ceph

package storagefile

import (
	"sync"

	"github.com/ceph/go-ceph/rados"

	"github.com/sutra-engine/sutra-storage/sterr"
)

// CephConfig configures a CephBackend: cluster/user identity plus the
// pool an object is written to.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// CephBackend mirrors storage.dat to a RADOS pool object. It is compiled
// only with the ceph build tag and the server binary does not use it.
// Like S3Backend, it is a best-effort replica: WriteAtomic failures are
// returned to the caller and never touch the load-bearing FileBackend.
type CephBackend struct {
	cfg    CephConfig
	obj    string

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

// NewCephBackend constructs a mirror backend for a single namespace,
// storing it as one object under cfg.Prefix/namespace.
func NewCephBackend(cfg CephConfig, namespace string) *CephBackend {
	obj := namespace + "/storage.dat"
	if cfg.Prefix != "" {
		obj = cfg.Prefix + "/" + obj
	}
	return &CephBackend{cfg: cfg, obj: obj}
}

func (c *CephBackend) ensureOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil
	}

	conn, err := rados.NewConnWithClusterAndUser(c.cfg.ClusterName, c.cfg.UserName)
	if err != nil {
		return sterr.Wrap(sterr.IoError, "ceph backend: failed to create connection", err)
	}
	if c.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(c.cfg.ConfFile); err != nil {
			return sterr.Wrap(sterr.IoError, "ceph backend: failed to read conf file", err)
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		return sterr.Wrap(sterr.IoError, "ceph backend: connect failed", err)
	}

	ioctx, err := conn.OpenIOContext(c.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return sterr.Wrap(sterr.IoError, "ceph backend: failed to open pool", err)
	}

	c.conn = conn
	c.ioctx = ioctx
	c.opened = true
	return nil
}

// WriteAtomic overwrites the mirrored object in full; RADOS has no
// rename primitive, so durability here rests on WriteFull being a
// single replicated op rather than a temp+rename dance.
func (c *CephBackend) WriteAtomic(data []byte) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if err := c.ioctx.WriteFull(c.obj, data); err != nil {
		return sterr.Wrap(sterr.IoError, "ceph backend: write failed", err)
	}
	return nil
}

// ReadFull stats then reads the mirrored object whole.
func (c *CephBackend) ReadFull() ([]byte, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	stat, err := c.ioctx.Stat(c.obj)
	if err != nil {
		return nil, sterr.Wrap(sterr.NotFound, "ceph backend: object not found", err)
	}
	data := make([]byte, stat.Size)
	n, err := c.ioctx.Read(c.obj, data, 0)
	if err != nil {
		return nil, sterr.Wrap(sterr.IoError, "ceph backend: read failed", err)
	}
	return data[:n], nil
}

// Backup is unsupported for the same reason as S3Backend: the mirror
// keeps only the latest generation.
func (c *CephBackend) Backup() ([]byte, error) {
	return nil, sterr.New(sterr.Unavailable, "ceph backend: no backup retained")
}

var _ Backend = (*CephBackend)(nil)
