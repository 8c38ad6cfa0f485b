package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/model"
)

const (
	sharedBucket   = "shared_records"
	receivedBucket = "received_folders"
)

var _ Store = (*BboltStore)(nil)

// BboltStore keeps both record collections in a single bbolt file, one
// bucket per collection.
type BboltStore struct {
	db *bbolt.DB

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBboltStore opens (or creates) the record database at the configured path
func NewBboltStore(cfg *config.BboltConfig) (*BboltStore, error) {
	// Apply defaults to ensure required values are set
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bbolt config: %w", err)
	}

	db, err := bbolt.Open(cfg.Path, cfg.Mode, nil)
	if err != nil {
		return nil, err
	}
	db.NoSync = cfg.NoSync

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{sharedBucket, receivedBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStore{
		db:   db,
		subs: make(map[chan Event]struct{}),
	}, nil
}

func (s *BboltStore) Close() error {
	s.mu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// ================== SHARED RECORDS ==================

// InsertShared stores a new sender-side share record, assigning an id if the
// caller did not provide one. Returns the stored record.
func (s *BboltStore) InsertShared(rec model.SharedRecord) (model.SharedRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sharedBucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), val)
	})
	if err != nil {
		return model.SharedRecord{}, err
	}

	s.notify(Event{Collection: "shared", Op: OpInsert, Key: rec.ID})
	return rec, nil
}

// ListShared returns a one-shot snapshot of all shared records
func (s *BboltStore) ListShared() ([]model.SharedRecord, error) {
	var records []model.SharedRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sharedBucket))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var rec model.SharedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal error for key %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})

	return records, err
}

func (s *BboltStore) DeleteShared(id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sharedBucket))
		if b == nil {
			return ErrBucketNotFound
		}
		if b.Get([]byte(id)) == nil {
			return ErrRecordNotFound
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}

	s.notify(Event{Collection: "shared", Op: OpDelete, Key: id})
	return nil
}

// ================== RECEIVED RECORDS ==================

// UpsertReceived inserts or replaces the record for rec.FolderID. On
// conflict the original id and ReceivedAt are preserved; name, sender,
// upload timestamp and last-access timestamp come from the new value.
// Returns the stored record.
func (s *BboltStore) UpsertReceived(rec model.ReceivedRecord) (model.ReceivedRecord, error) {
	if rec.FolderID == "" {
		return model.ReceivedRecord{}, fmt.Errorf("received record requires a folder id")
	}

	op := OpInsert
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(receivedBucket))
		if b == nil {
			return ErrBucketNotFound
		}

		if prev := b.Get([]byte(rec.FolderID)); prev != nil {
			var existing model.ReceivedRecord
			if err := json.Unmarshal(prev, &existing); err != nil {
				return fmt.Errorf("unmarshal error for key %s: %w", rec.FolderID, err)
			}
			rec.ID = existing.ID
			rec.ReceivedAt = existing.ReceivedAt
			op = OpUpdate
		} else if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.FolderID), val)
	})
	if err != nil {
		return model.ReceivedRecord{}, err
	}

	s.notify(Event{Collection: "received", Op: op, Key: rec.FolderID})
	return rec, nil
}

func (s *BboltStore) FindReceived(folderID string) (*model.ReceivedRecord, error) {
	var rec model.ReceivedRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(receivedBucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val := b.Get([]byte(folderID))
		if val == nil {
			return ErrRecordNotFound
		}
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListReceived returns a one-shot snapshot of all received records
func (s *BboltStore) ListReceived() ([]model.ReceivedRecord, error) {
	var records []model.ReceivedRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(receivedBucket))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var rec model.ReceivedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal error for key %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})

	return records, err
}

// TouchReceived updates only the last-access timestamp of the record for
// folderID.
func (s *BboltStore) TouchReceived(folderID, lastAccessAt string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(receivedBucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val := b.Get([]byte(folderID))
		if val == nil {
			return ErrRecordNotFound
		}

		var rec model.ReceivedRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("unmarshal error for key %s: %w", folderID, err)
		}
		rec.LastAccessAt = lastAccessAt

		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(folderID), updated)
	})
	if err != nil {
		return err
	}

	s.notify(Event{Collection: "received", Op: OpUpdate, Key: folderID})
	return nil
}

func (s *BboltStore) DeleteReceivedByFolder(folderID string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(receivedBucket))
		if b == nil {
			return ErrBucketNotFound
		}
		if b.Get([]byte(folderID)) == nil {
			return ErrRecordNotFound
		}
		return b.Delete([]byte(folderID))
	})
	if err != nil {
		return err
	}

	s.notify(Event{Collection: "received", Op: OpDelete, Key: folderID})
	return nil
}

// ================== COUNTS & WATCH ==================

func (s *BboltStore) Counts() (shared int64, received int64, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(sharedBucket)); b != nil {
			shared = int64(b.Stats().KeyN)
		}
		if b := tx.Bucket([]byte(receivedBucket)); b != nil {
			received = int64(b.Stats().KeyN)
		}
		return nil
	})
	return shared, received, err
}

// Watch returns a stream of change events. The channel is closed when ctx is
// cancelled or the store is closed. Slow consumers drop events rather than
// blocking writers.
func (s *BboltStore) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 64)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}()

	return ch
}

func (s *BboltStore) notify(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop the event
		}
	}
}
