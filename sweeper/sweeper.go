package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matsuo0603/ShareFileBC/gateway"
	"github.com/matsuo0603/ShareFileBC/logger"
	"github.com/matsuo0603/ShareFileBC/model"
	"github.com/matsuo0603/ShareFileBC/retention"
	"github.com/matsuo0603/ShareFileBC/store"
)

// Sweeper removes expired records: the remote content first, then the local
// record. A record whose remote deletion fails is kept for the next run, so
// re-running a sweep is always safe.
type Sweeper struct {
	store   store.Store
	gateway gateway.Gateway
	policy  *retention.Policy
	logger  logger.Logger
}

// NewSweeper creates a new Sweeper with the provided dependencies
func NewSweeper(st store.Store, gw gateway.Gateway, policy *retention.Policy, log logger.Logger) *Sweeper {
	// Use NoOpLogger if none provided
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Sweeper{
		store:   st,
		gateway: gw,
		policy:  policy,
		logger:  log,
	}
}

// CollectionReport contains statistics from sweeping one record collection
type CollectionReport struct {
	Scanned         int64 // Total records examined
	Expired         int64 // Records past their deadline
	Deleted         int64 // Records removed locally (and remotely unless skipped)
	RetainedOnError int64 // Expired records kept because a deletion step failed
	ParseFailures   int64 // Records with unreadable timestamps, never deleted
	Aborted         bool  // Collection abandoned after a connectivity failure
}

func (r *CollectionReport) String() string {
	s := fmt.Sprintf("scanned=%d, expired=%d, deleted=%d, retained=%d, parse_failures=%d",
		r.Scanned, r.Expired, r.Deleted, r.RetainedOnError, r.ParseFailures)
	if r.Aborted {
		s += ", aborted"
	}
	return s
}

// SweepReport contains statistics from one full sweep
type SweepReport struct {
	Shared   CollectionReport
	Received CollectionReport
}

func (r *SweepReport) String() string {
	return fmt.Sprintf("Sweep: shared[%s] received[%s]", r.Shared.String(), r.Received.String())
}

// RunSweep walks both record collections and removes everything past its
// deadline. The reference instant is fixed once per run, so all records are
// judged against the same clock. With skipRemoteDeletion the remote content
// is left alone and only local records are dropped.
//
// Per-record failures are counted, not returned: the only hard error is a
// cancelled context. A connectivity failure aborts the rest of its
// collection but the other collection is still swept.
func (s *Sweeper) RunSweep(ctx context.Context, skipRemoteDeletion bool) (*SweepReport, error) {
	s.logger.Info("Starting retention sweep")
	now := s.policy.Now()
	report := &SweepReport{}

	if err := s.sweepShared(ctx, now, skipRemoteDeletion, &report.Shared); err != nil {
		return report, err
	}
	if err := s.sweepReceived(ctx, now, skipRemoteDeletion, &report.Received); err != nil {
		return report, err
	}

	if mon, ok := s.gateway.(gateway.RPSMonitor); ok {
		s.logger.Debug("Gateway request rate: %d rps", mon.GetCurrentRPS())
	}
	s.logger.Info(report.String())
	return report, nil
}

func (s *Sweeper) sweepShared(ctx context.Context, now time.Time, skipRemoteDeletion bool, report *CollectionReport) error {
	records, err := s.store.ListShared()
	if err != nil {
		s.logger.Error("Failed to load shared records: %v", err)
		report.Aborted = true
		return nil
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++

		expired, ok := s.checkExpiry(rec.UploadedAt, now, report)
		if !ok || !expired {
			continue
		}

		// Remote content goes first; the record is the tombstone that lets
		// us retry if this step fails
		if !skipRemoteDeletion {
			if err := s.gateway.Delete(ctx, rec.FileID); err != nil {
				if errors.Is(err, gateway.ErrUnavailable) {
					s.logger.Warn("Remote storage unavailable, abandoning shared sweep: %v", err)
					report.Aborted = true
					return nil
				}
				s.logger.Warn("Failed to delete remote file %s: %v", rec.FileID, err)
				report.RetainedOnError++
				continue
			}
		}

		if err := s.deleteSharedRecord(rec); err != nil {
			s.logger.Warn("Failed to delete shared record %s: %v", rec.ID, err)
			report.RetainedOnError++
			continue
		}
		report.Deleted++
		s.logger.Debug("Deleted expired shared record %s (file %s)", rec.ID, rec.FileName)
	}
	return nil
}

func (s *Sweeper) sweepReceived(ctx context.Context, now time.Time, skipRemoteDeletion bool, report *CollectionReport) error {
	records, err := s.store.ListReceived()
	if err != nil {
		s.logger.Error("Failed to load received records: %v", err)
		report.Aborted = true
		return nil
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++

		expired, ok := s.checkExpiry(rec.UploadedAt, now, report)
		if !ok || !expired {
			continue
		}

		if !skipRemoteDeletion {
			if err := s.gateway.Delete(ctx, rec.FolderID); err != nil {
				if errors.Is(err, gateway.ErrUnavailable) {
					s.logger.Warn("Remote storage unavailable, abandoning received sweep: %v", err)
					report.Aborted = true
					return nil
				}
				s.logger.Warn("Failed to delete remote folder %s: %v", rec.FolderID, err)
				report.RetainedOnError++
				continue
			}
		}

		if err := s.deleteReceivedRecord(rec); err != nil {
			s.logger.Warn("Failed to delete received record %s: %v", rec.ID, err)
			report.RetainedOnError++
			continue
		}
		report.Deleted++
		s.logger.Debug("Deleted expired received record %s (folder %s)", rec.ID, rec.FolderName)
	}
	return nil
}

// checkExpiry classifies one record. A timestamp that does not parse is
// counted and skipped: a record we cannot date is a record we never delete.
func (s *Sweeper) checkExpiry(uploadedAt string, now time.Time, report *CollectionReport) (expired, ok bool) {
	deadline, err := s.policy.DeleteDeadline(uploadedAt)
	if err != nil {
		s.logger.Warn("Unreadable upload timestamp %q, record kept: %v", uploadedAt, err)
		report.ParseFailures++
		return false, false
	}
	if now.After(deadline) {
		report.Expired++
		return true, true
	}
	return false, true
}

func (s *Sweeper) deleteSharedRecord(rec model.SharedRecord) error {
	err := s.store.DeleteShared(rec.ID)
	if errors.Is(err, store.ErrRecordNotFound) {
		// Someone beat us to it, which is fine
		return nil
	}
	return err
}

func (s *Sweeper) deleteReceivedRecord(rec model.ReceivedRecord) error {
	err := s.store.DeleteReceivedByFolder(rec.FolderID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	return err
}
