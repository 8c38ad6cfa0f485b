package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/gateway"
	"github.com/matsuo0603/ShareFileBC/logger"
	"github.com/matsuo0603/ShareFileBC/model"
	"github.com/matsuo0603/ShareFileBC/notify"
	"github.com/matsuo0603/ShareFileBC/retention"
	"github.com/matsuo0603/ShareFileBC/store"
)

// Uploader drives the sender-side share flow: place the file in the remote
// folder chain, record the share locally, and tell the recipient.
type Uploader struct {
	store    store.Store
	gateway  gateway.Gateway
	notifier notify.Notifier
	policy   *retention.Policy
	config   *config.ShareConfig
	logger   logger.Logger
}

// NewUploader creates a new Uploader with the provided dependencies
func NewUploader(st store.Store, gw gateway.Gateway, n notify.Notifier, policy *retention.Policy, cfg *config.ShareConfig, log logger.Logger) *Uploader {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if n == nil {
		n = notify.NewNoOpNotifier()
	}
	return &Uploader{
		store:    st,
		gateway:  gw,
		notifier: n,
		policy:   policy,
		config:   cfg,
		logger:   log,
	}
}

// ShareResult is what a completed share hands back to the caller.
type ShareResult struct {
	Record model.SharedRecord `json:"record"`
	Link   string             `json:"link"`
}

// ShareFile uploads content for a recipient and records the share. The
// remote folder chain is app root, recipient name, upload date; each level
// is reused if it already exists, so two shares to the same person on the
// same day land in one folder. Any failure before the record insert leaves
// no record behind; folders created on the way stay, they are reusable.
func (u *Uploader) ShareFile(ctx context.Context, content io.Reader, fileName, recipient, recipientEmail string) (*ShareResult, error) {
	if fileName == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if recipient == "" {
		return nil, fmt.Errorf("recipient is required")
	}

	now := u.policy.Now()

	rootID, err := u.gateway.EnsureFolder(ctx, u.config.RootFolder, u.gateway.RootID())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve app root folder: %w", err)
	}
	recipientID, err := u.gateway.EnsureFolder(ctx, recipient, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient folder: %w", err)
	}
	dateID, err := u.gateway.EnsureFolder(ctx, u.policy.FormatDate(now), recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve date folder: %w", err)
	}

	fileID, err := u.gateway.CreateFile(ctx, fileName, dateID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", fileName, err)
	}

	if recipientEmail != "" {
		if err := u.gateway.GrantRead(ctx, fileID, recipientEmail); err != nil {
			if !errors.Is(err, gateway.ErrNotSupported) {
				return nil, fmt.Errorf("failed to grant access on %s: %w", fileName, err)
			}
			u.logger.Debug("Backend has no per-object grants, skipping for %s", fileName)
		}
	}

	rec, err := u.store.InsertShared(model.SharedRecord{
		UploadedAt: u.policy.FormatTime(now),
		Recipient:  recipient,
		FolderID:   dateID,
		FileName:   fileName,
		FileID:     fileID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record share: %w", err)
	}

	link := BuildLink(u.config.PublicBaseURL, dateID)
	u.logger.Info("Shared %s with %s (folder %s)", fileName, recipient, dateID)

	if recipientEmail != "" {
		// Fire and forget: a failed mail must not undo a completed share
		go u.sendNotification(recipientEmail, fileName, link)
	}

	return &ShareResult{Record: rec, Link: link}, nil
}

func (u *Uploader) sendNotification(to, fileName, link string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subject := "A file has been shared with you"
	body := fmt.Sprintf("You received %s.\n\nOpen it here: %s\n", fileName, link)
	if err := u.notifier.Send(ctx, to, subject, body); err != nil {
		u.logger.Warn("Failed to notify %s: %v", to, err)
	}
}
