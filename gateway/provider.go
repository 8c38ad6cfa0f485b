package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/model"
)

// ObjectInfo describes a single remote object, file or folder.
type ObjectInfo struct {
	ID        string
	Name      string
	ParentID  string
	CreatedAt time.Time
	IsFolder  bool
	Size      int64
	MimeType  string
}

// Gateway is uniform access to one remote storage backend. Object ids are
// backend-specific opaque strings (S3 keys, FTP paths); callers must never
// parse them, only pass them back.
type Gateway interface {
	// RootID returns the id of the storage root folder
	RootID() string
	Stat(ctx context.Context, id string) (*ObjectInfo, error)
	ListChildren(ctx context.Context, folderID string) ([]model.FileInfo, error)
	// EnsureFolder returns the id of the named child folder, creating it if
	// it does not exist yet
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	// CreateFile uploads content as a new file and returns its id
	CreateFile(ctx context.Context, name, parentID string, content io.Reader) (string, error)
	// OpenFile returns the content of a file; the caller closes the reader
	OpenFile(ctx context.Context, id string) (io.ReadCloser, error)
	// GrantRead gives the given address read access to the object
	GrantRead(ctx context.Context, id, address string) error
	// Delete removes the object; folders are removed recursively. Deleting
	// an object that is already gone is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}

// RPSMonitor is implemented by backends that track their request rate.
type RPSMonitor interface {
	GetCurrentRPS() int64
}

var (
	// ErrNotFound reports that the object id does not exist remotely
	ErrNotFound = errors.New("object not found")
	// ErrNotSupported reports an operation the backend cannot express
	ErrNotSupported = errors.New("operation not supported by this backend")
	// ErrUnavailable reports a connectivity-level failure; retrying other
	// operations against the same backend is pointless right now
	ErrUnavailable = errors.New("remote storage unavailable")
)

// CreateGateway creates a storage gateway based on configuration
func CreateGateway(cfg *config.GatewayConfig) (Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway configuration: %w", err)
	}

	switch cfg.GatewayType {
	case config.GatewayTypeS3:
		return NewS3Gateway(cfg.S3, &cfg.Common)
	case config.GatewayTypeFTP:
		return NewFTPGateway(cfg.FTP, &cfg.Common)
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", cfg.GatewayType)
	}
}
