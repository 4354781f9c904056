package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MegaGrindStone/design-assistant/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB keeps a journal of finished sync jobs and saved export assets in a BoltDB file. The conversation
// transcript itself is never written here.
type BoltDB struct {
	db *bolt.DB
}

const downloadsBucket = "downloads"

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(downloadsBucket))
		return err
	})

	return BoltDB{db: db}, err
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func syncBucketName(source string) []byte {
	return []byte(fmt.Sprintf("sync-%s", source))
}

// AddSyncRun appends a finished job to the journal of its source. It returns the ID assigned to the run,
// a zero-padded sequence number so that keys sort in insertion order.
func (b BoltDB) AddSyncRun(_ context.Context, run models.SyncRun) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(syncBucketName(run.Source))
		if err != nil {
			return fmt.Errorf("failed to create sync bucket: %w", err)
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%020d", seq)
		run.ID = newID

		v, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal sync run: %w", err)
		}

		return bk.Put([]byte(newID), v)
	})

	return newID, err
}

// SyncRuns retrieves the most recent runs of a source, newest first. A limit of zero or less returns all runs.
func (b BoltDB) SyncRuns(_ context.Context, source string, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(syncBucketName(source))
		if bk == nil {
			return nil
		}

		c := bk.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run models.SyncRun
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to unmarshal sync run: %w", err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// AddDownload records a saved export asset.
func (b BoltDB) AddDownload(_ context.Context, download models.Download) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(downloadsBucket))
		if bk == nil {
			return nil
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%020d", seq)
		download.ID = newID

		v, err := json.Marshal(download)
		if err != nil {
			return fmt.Errorf("failed to marshal download: %w", err)
		}

		return bk.Put([]byte(newID), v)
	})

	return newID, err
}

// Downloads retrieves all recorded downloads in reverse chronological order.
func (b BoltDB) Downloads(context.Context) ([]models.Download, error) {
	var downloads []models.Download
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(downloadsBucket))
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(_, v []byte) error {
			var download models.Download
			if err := json.Unmarshal(v, &download); err != nil {
				return fmt.Errorf("failed to unmarshal download: %w", err)
			}
			downloads = append(downloads, download)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(downloads)
	return downloads, nil
}
