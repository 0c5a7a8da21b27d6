// internal/storage/leveldb/client.go
package leveldb

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/talpslabs/talps/internal/config"
	"github.com/talpslabs/talps/internal/models"
)

const taskKeyPrefix = "task:"

type journalEntry struct {
	Record    models.TaskRecord `json:"record"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Client is the on-disk journal of finished tasks. Records expire after the
// retention period and are swept by a background cleanup routine. The
// journal is write-only for the manager: nothing in scheduling ever reads
// it back, it exists for the history API and post-mortems.
type Client struct {
	db              *leveldb.DB
	retention       time.Duration
	cleanupInterval time.Duration
	mutex           sync.RWMutex
	stopCleanup     chan struct{}
}

func NewClient(cfg config.JournalConfig, retention time.Duration) (*Client, error) {
	opts := &opt.Options{
		CompactionTableSize: 2 * 1024 * 1024, // 2MB
		WriteBuffer:         1 * 1024 * 1024, // 1MB
	}

	db, err := leveldb.OpenFile(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	client := &Client{
		db:              db,
		retention:       retention,
		cleanupInterval: 6 * time.Hour, // Run cleanup every 6 hours
		stopCleanup:     make(chan struct{}),
	}

	go client.startCleanupRoutine()

	return client, nil
}

func (c *Client) Close() error {
	close(c.stopCleanup)
	return c.db.Close()
}

// Append writes the terminal record of one task. Keys are zero-padded ids,
// so iteration order is submission order.
func (c *Client) Append(record models.TaskRecord) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry := journalEntry{
		Record:    record,
		ExpiresAt: time.Now().Add(c.retention),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	return c.db.Put([]byte(taskKey(record.ID)), data, nil)
}

// History returns every unexpired task record in id order.
func (c *Client) History() ([]models.TaskRecord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	iter := c.db.NewIterator(util.BytesPrefix([]byte(taskKeyPrefix)), nil)
	defer iter.Release()

	var records []models.TaskRecord
	now := time.Now()
	for iter.Next() {
		var entry journalEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		if now.After(entry.ExpiresAt) {
			continue
		}
		records = append(records, entry.Record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to scan journal: %w", err)
	}
	return records, nil
}

func (c *Client) startCleanupRoutine() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Client) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	iter := c.db.NewIterator(util.BytesPrefix([]byte(taskKeyPrefix)), nil)
	defer iter.Release()

	var keysToDelete [][]byte

	for iter.Next() {
		var entry journalEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}

		if time.Now().After(entry.ExpiresAt) {
			key := append([]byte(nil), iter.Key()...)
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.db.Delete(key, nil)
	}
}

func taskKey(id models.TaskID) string {
	return fmt.Sprintf("%s%020d", taskKeyPrefix, id)
}
