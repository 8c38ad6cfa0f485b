package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/model"
)

var _ Gateway = (*FTPGateway)(nil)

// FTPGateway maps the folder model onto FTP paths: an object id is its
// absolute path under the configured base path. Entry modification times
// stand in for creation times, which is the best FTP can offer.
type FTPGateway struct {
	config     *config.FTPConfig
	common     *config.CommonGatewayConfig
	connPool   chan *ftp.ServerConn
	dialConfig *ftp.DialOption
}

// NewFTPGateway creates a new FTP gateway and verifies connectivity
func NewFTPGateway(cfg *config.FTPConfig, common *config.CommonGatewayConfig) (*FTPGateway, error) {
	// Apply defaults
	cfg.ApplyDefaults()
	common.ApplyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ftp config: %w", err)
	}
	if err := common.Validate(); err != nil {
		return nil, fmt.Errorf("invalid common config: %w", err)
	}

	// Setup dial options
	var dialConfig *ftp.DialOption
	if cfg.UseTLS {
		opt := ftp.DialWithExplicitTLS(&tls.Config{
			InsecureSkipVerify: false,
		})
		dialConfig = &opt
	}

	gw := &FTPGateway{
		config:     cfg,
		common:     common,
		connPool:   make(chan *ftp.ServerConn, cfg.PoolSize),
		dialConfig: dialConfig,
	}

	// Pre-populate connection pool with one connection to verify connectivity
	conn, err := gw.createConnection()
	if err != nil {
		return nil, err
	}
	gw.returnConnection(conn)

	return gw, nil
}

// createConnection creates a new FTP connection
func (f *FTPGateway) createConnection() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", f.config.Host, f.config.Port)

	var conn *ftp.ServerConn
	var err error

	if f.dialConfig != nil {
		conn, err = ftp.Dial(addr, *f.dialConfig, ftp.DialWithTimeout(time.Duration(f.common.TimeoutSeconds)*time.Second))
	} else {
		conn, err = ftp.Dial(addr, ftp.DialWithTimeout(time.Duration(f.common.TimeoutSeconds)*time.Second))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial: %v", ErrUnavailable, err)
	}

	if err := conn.Login(f.config.Username, f.config.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: failed to login: %v", ErrUnavailable, err)
	}

	return conn, nil
}

// getConnection retrieves a connection from the pool or creates a new one
func (f *FTPGateway) getConnection(ctx context.Context) (*ftp.ServerConn, error) {
	select {
	case conn := <-f.connPool:
		// Test if connection is still alive
		if err := conn.NoOp(); err != nil {
			conn.Quit()
			return f.createConnection()
		}
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// No connection available, create a new one
		return f.createConnection()
	}
}

// returnConnection returns a connection to the pool
func (f *FTPGateway) returnConnection(conn *ftp.ServerConn) {
	if conn == nil {
		return
	}

	select {
	case f.connPool <- conn:
	default:
		// Pool is full, close the connection
		conn.Quit()
	}
}

// RootID returns the configured base path.
func (f *FTPGateway) RootID() string {
	return path.Clean(f.config.BasePath)
}

func (f *FTPGateway) Stat(ctx context.Context, id string) (*ObjectInfo, error) {
	id = path.Clean(id)
	if id == f.RootID() {
		return &ObjectInfo{ID: id, Name: path.Base(id), IsFolder: true}, nil
	}

	// MLST support is spotty across servers, so stat by listing the parent
	parent := path.Dir(id)
	entries, err := f.list(ctx, parent)
	if err != nil {
		return nil, err
	}

	name := path.Base(id)
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		return &ObjectInfo{
			ID:        id,
			Name:      e.Name,
			ParentID:  parent,
			CreatedAt: e.Time,
			IsFolder:  e.Type == ftp.EntryTypeFolder,
			Size:      int64(e.Size),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (f *FTPGateway) ListChildren(ctx context.Context, folderID string) ([]model.FileInfo, error) {
	entries, err := f.list(ctx, path.Clean(folderID))
	if err != nil {
		return nil, err
	}

	children := []model.FileInfo{}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		children = append(children, model.FileInfo{
			ID:       path.Join(path.Clean(folderID), e.Name),
			Name:     e.Name,
			IsFolder: e.Type == ftp.EntryTypeFolder,
			Size:     int64(e.Size),
		})
	}
	return children, nil
}

func (f *FTPGateway) list(ctx context.Context, dir string) ([]*ftp.Entry, error) {
	conn, err := f.getConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer f.returnConnection(conn)

	entries, err := conn.List(dir)
	if err != nil {
		if isFTPNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return entries, nil
}

func (f *FTPGateway) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	id := path.Join(path.Clean(parentID), name)

	conn, err := f.getConnection(ctx)
	if err != nil {
		return "", err
	}
	defer f.returnConnection(conn)

	currentDir, err := conn.CurrentDir()
	if err != nil {
		return "", fmt.Errorf("failed to read working directory: %w", err)
	}

	// Query first: if the directory exists, reuse it
	if err := conn.ChangeDir(id); err == nil {
		conn.ChangeDir(currentDir)
		return id, nil
	}

	// Create the path segment by segment, ignoring already-exists errors
	parts := strings.Split(strings.TrimPrefix(id, "/"), "/")
	currentPath := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		currentPath = currentPath + "/" + part
		conn.MakeDir(currentPath)
	}

	if err := conn.ChangeDir(id); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", id, err)
	}
	conn.ChangeDir(currentDir)
	return id, nil
}

func (f *FTPGateway) CreateFile(ctx context.Context, name, parentID string, content io.Reader) (string, error) {
	id := path.Join(path.Clean(parentID), name)

	conn, err := f.getConnection(ctx)
	if err != nil {
		return "", err
	}
	defer f.returnConnection(conn)

	// No retry here: the content reader can only be consumed once
	if err := conn.Stor(id, content); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", id, err)
	}
	return id, nil
}

func (f *FTPGateway) OpenFile(ctx context.Context, id string) (io.ReadCloser, error) {
	conn, err := f.getConnection(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(path.Clean(id))
	if err != nil {
		f.returnConnection(conn)
		if isFTPNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to retrieve %s: %w", id, err)
	}

	// The connection stays checked out until the caller closes the reader
	return &pooledReader{resp: resp, conn: conn, pool: f}, nil
}

// GrantRead is not expressible over FTP; access follows server accounts.
func (f *FTPGateway) GrantRead(ctx context.Context, id, address string) error {
	return fmt.Errorf("%w: ftp has no per-object grants", ErrNotSupported)
}

// Delete removes a file or a directory tree with retry and backoff.
// Objects that are already gone are not an error.
func (f *FTPGateway) Delete(ctx context.Context, id string) error {
	info, err := f.Stat(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	var lastErr error
	for attempt := 0; attempt < f.common.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		conn, err := f.getConnection(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		if info.IsFolder {
			err = conn.RemoveDirRecur(info.ID)
		} else {
			err = conn.Delete(info.ID)
		}
		f.returnConnection(conn)

		if err == nil || isFTPNotFound(err) {
			return nil
		}
		lastErr = fmt.Errorf("failed to delete %s: %w", info.ID, err)
	}

	return fmt.Errorf("delete failed after %d attempts: %w", f.common.MaxRetries, lastErr)
}

// Close closes all connections in the pool
func (f *FTPGateway) Close() error {
	close(f.connPool)

	for conn := range f.connPool {
		conn.Quit()
	}

	return nil
}

// pooledReader returns the checked-out connection to the pool on close.
type pooledReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
	pool *FTPGateway
}

func (r *pooledReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *pooledReader) Close() error {
	err := r.resp.Close()
	r.pool.returnConnection(r.conn)
	return err
}

func isFTPNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "550") || strings.Contains(err.Error(), "not found")
}
