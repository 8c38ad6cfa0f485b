package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/model"
)

func newTestBboltStore(t *testing.T) *BboltStore {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "records-*.db")
	require.NoError(t, err)

	s, err := NewBboltStore(&config.BboltConfig{
		Path: tmpFile.Name(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
		os.Remove(tmpFile.Name())
	})
	return s
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := NewBboltStore(&config.BboltConfig{
		Path: "/invalid/path.db",
	})
	require.Error(t, err)
}

func TestInsertAndListShared(t *testing.T) {
	s := newTestBboltStore(t)

	rec, err := s.InsertShared(model.SharedRecord{
		UploadedAt: "2025-06-25 12:00",
		Recipient:  "Alice",
		FolderID:   "folder-1",
		FileName:   "report.pdf",
		FileID:     "file-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	all, err := s.ListShared()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, rec, all[0])
}

func TestSharedRecordsShareAFolder(t *testing.T) {
	s := newTestBboltStore(t)

	// Two files shared with the same recipient on the same day reference
	// the same date folder but stay distinct records.
	a, err := s.InsertShared(model.SharedRecord{FolderID: "folder-1", FileID: "file-a", UploadedAt: "2025-06-25 12:00"})
	require.NoError(t, err)
	b, err := s.InsertShared(model.SharedRecord{FolderID: "folder-1", FileID: "file-b", UploadedAt: "2025-06-25 12:05"})
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	all, err := s.ListShared()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDeleteShared(t *testing.T) {
	s := newTestBboltStore(t)

	rec, err := s.InsertShared(model.SharedRecord{FileID: "file-1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteShared(rec.ID))

	all, err := s.ListShared()
	require.NoError(t, err)
	require.Empty(t, all)

	err = s.DeleteShared(rec.ID)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUpsertReceived_InsertThenConflict(t *testing.T) {
	s := newTestBboltStore(t)

	first, err := s.UpsertReceived(model.ReceivedRecord{
		FolderID:     "folder-1",
		FolderName:   "2025-06-25",
		Sender:       "Bob",
		UploadedAt:   "2025-06-25 12:00",
		ReceivedAt:   "2025-06-25 13:00",
		LastAccessAt: "2025-06-25 13:00",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	// Reopening the same folder replaces the row but keeps id and ReceivedAt.
	second, err := s.UpsertReceived(model.ReceivedRecord{
		FolderID:     "folder-1",
		FolderName:   "2025-06-25",
		Sender:       "Bob",
		UploadedAt:   "2025-06-25 12:00",
		ReceivedAt:   "2025-06-26 09:00",
		LastAccessAt: "2025-06-26 09:00",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "2025-06-25 13:00", second.ReceivedAt)
	require.Equal(t, "2025-06-26 09:00", second.LastAccessAt)

	all, err := s.ListReceived()
	require.NoError(t, err)
	require.Len(t, all, 1, "folder id must stay unique")
}

func TestUpsertReceived_RequiresFolderID(t *testing.T) {
	s := newTestBboltStore(t)

	_, err := s.UpsertReceived(model.ReceivedRecord{FolderName: "nameless"})
	require.Error(t, err)
}

func TestFindReceived(t *testing.T) {
	s := newTestBboltStore(t)

	_, err := s.UpsertReceived(model.ReceivedRecord{FolderID: "folder-1", Sender: "Bob"})
	require.NoError(t, err)

	got, err := s.FindReceived("folder-1")
	require.NoError(t, err)
	require.Equal(t, "Bob", got.Sender)

	_, err = s.FindReceived("missing")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestTouchReceived(t *testing.T) {
	s := newTestBboltStore(t)

	_, err := s.UpsertReceived(model.ReceivedRecord{
		FolderID:     "folder-1",
		LastAccessAt: "2025-06-25 13:00",
	})
	require.NoError(t, err)

	require.NoError(t, s.TouchReceived("folder-1", "2025-06-26 08:30"))

	got, err := s.FindReceived("folder-1")
	require.NoError(t, err)
	require.Equal(t, "2025-06-26 08:30", got.LastAccessAt)

	require.ErrorIs(t, s.TouchReceived("missing", "2025-06-26 08:30"), ErrRecordNotFound)
}

func TestDeleteReceivedByFolder(t *testing.T) {
	s := newTestBboltStore(t)

	_, err := s.UpsertReceived(model.ReceivedRecord{FolderID: "folder-1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteReceivedByFolder("folder-1"))
	require.ErrorIs(t, s.DeleteReceivedByFolder("folder-1"), ErrRecordNotFound)
}

func TestCounts(t *testing.T) {
	s := newTestBboltStore(t)

	_, err := s.InsertShared(model.SharedRecord{FileID: "f"})
	require.NoError(t, err)
	_, err = s.UpsertReceived(model.ReceivedRecord{FolderID: "folder-1"})
	require.NoError(t, err)
	_, err = s.UpsertReceived(model.ReceivedRecord{FolderID: "folder-2"})
	require.NoError(t, err)

	shared, received, err := s.Counts()
	require.NoError(t, err)
	require.Equal(t, int64(1), shared)
	require.Equal(t, int64(2), received)
}

func TestWatch(t *testing.T) {
	s := newTestBboltStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.Watch(ctx)

	rec, err := s.InsertShared(model.SharedRecord{FileID: "file-1"})
	require.NoError(t, err)
	_, err = s.UpsertReceived(model.ReceivedRecord{FolderID: "folder-1"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteShared(rec.ID))

	want := []Event{
		{Collection: "shared", Op: OpInsert, Key: rec.ID},
		{Collection: "received", Op: OpInsert, Key: "folder-1"},
		{Collection: "shared", Op: OpDelete, Key: rec.ID},
	}
	for _, expected := range want {
		select {
		case got := <-events:
			require.Equal(t, expected, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %+v", expected)
		}
	}

	cancel()
	_, open := <-events
	require.False(t, open, "watch channel must close on cancel")
}
