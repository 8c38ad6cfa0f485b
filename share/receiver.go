package share

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsuo0603/ShareFileBC/gateway"
	"github.com/matsuo0603/ShareFileBC/logger"
	"github.com/matsuo0603/ShareFileBC/model"
	"github.com/matsuo0603/ShareFileBC/retention"
	"github.com/matsuo0603/ShareFileBC/store"
)

// Receiver drives the recipient-side flow: resolve a deep link's folder to a
// live listing and keep the local received-folder record in step with what
// the remote side still holds.
type Receiver struct {
	store   store.Store
	gateway gateway.Gateway
	policy  *retention.Policy
	logger  logger.Logger
}

// NewReceiver creates a new Receiver with the provided dependencies
func NewReceiver(st store.Store, gw gateway.Gateway, policy *retention.Policy, log logger.Logger) *Receiver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Receiver{
		store:   st,
		gateway: gw,
		policy:  policy,
		logger:  log,
	}
}

// OpenFolder lists a shared folder and records the visit. The first open
// sets the received timestamp and later opens only move the last-access
// timestamp; both are handled by the store's conflict rule. A folder found
// empty means the sender's content is gone, so any local record for it is
// dropped.
func (r *Receiver) OpenFolder(ctx context.Context, folderID string) (*model.FolderStructure, error) {
	if folderID == "" {
		return nil, fmt.Errorf("folder id is required")
	}

	info, err := r.gateway.Stat(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder %s: %w", folderID, err)
	}
	if !info.IsFolder {
		return nil, fmt.Errorf("object %s is not a folder", folderID)
	}

	// The sender's name is the recipient folder one level up. Losing it is
	// not worth failing the open.
	sender := ""
	if info.ParentID != "" {
		if parent, perr := r.gateway.Stat(ctx, info.ParentID); perr == nil {
			sender = parent.Name
		} else {
			r.logger.Debug("Could not resolve sender of %s: %v", folderID, perr)
		}
	}

	files, err := r.gateway.ListChildren(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}

	uploadedAt := r.policy.FormatTime(info.CreatedAt)
	if info.CreatedAt.IsZero() {
		// Without a creation time the retention clock starts at first sight
		uploadedAt = r.policy.FormatTime(r.policy.Now())
	}

	structure := &model.FolderStructure{
		FolderName: info.Name,
		Sender:     sender,
		UploadedAt: uploadedAt,
		Files:      files,
	}

	if len(files) == 0 {
		// Nothing left remotely; the local record has nothing to point at
		if derr := r.store.DeleteReceivedByFolder(folderID); derr != nil && !errors.Is(derr, store.ErrRecordNotFound) {
			r.logger.Warn("Failed to drop record for empty folder %s: %v", folderID, derr)
		}
		return structure, nil
	}

	nowStamp := r.policy.FormatTime(r.policy.Now())
	_, err = r.store.UpsertReceived(model.ReceivedRecord{
		FolderID:     folderID,
		FolderName:   info.Name,
		Sender:       sender,
		UploadedAt:   uploadedAt,
		ReceivedAt:   nowStamp,
		LastAccessAt: nowStamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record received folder %s: %w", folderID, err)
	}

	return structure, nil
}
