package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/mdimg/pkg/log"
	"github.com/Sriram-PR/mdimg/pkg/models"
	"github.com/Sriram-PR/mdimg/pkg/utils"
)

const (
	imageKeyPrefix    = "img:"      // Prefix for image URL keys in DB
	documentKeyPrefix = "doc:"      // Prefix for document path keys in DB
	ledgerDBDir       = "ledger_db" // Subdirectory name within stateDir for Badger DB files
)

var errStoreClosed = errors.New("ledger DB not initialized")

// BadgerStore implements LedgerStore using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context
	keyCount atomic.Int64
}

// NewBadgerStore opens (or creates) the ledger under stateDir.
// With reset the previous ledger is removed first.
func NewBadgerStore(ctx context.Context, stateDir string, reset bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log: logger,
		ctx: ctx,
	}

	dbPath := filepath.Join(stateDir, ledgerDBDir)
	if reset {
		logger.Warnf("Resetting ledger. REMOVING existing state directory: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewLedgerLogAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing ledger keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}

	logger.WithFields(logrus.Fields{"path": dbPath, "records": count}).Debug("Ledger opened")
	return store, nil
}

func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Parallel fetch workers can write overlapping keys; conflicts clear almost immediately.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// getJSON loads and decodes key into dst. found is false for a missing key or
// an undecodable value, which is logged and treated as absent.
func (s *BadgerStore) getJSON(key []byte, dst any) (found bool, err error) {
	if s.db == nil {
		return false, errStoreClosed
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				s.log.Warnf("Key '%s' found with empty value, treating as 'not_found'", string(key))
				return nil
			}
			if errJson := json.Unmarshal(val, dst); errJson != nil {
				s.log.Warnf("Failed to unmarshal entry for key '%s': %v. Treating as 'not_found'.", string(key), errJson)
				return nil
			}
			found = true
			return nil
		})
	})
	return found, err
}

// putJSON encodes value and stores it under key
func (s *BadgerStore) putJSON(key []byte, value any) error {
	if s.db == nil {
		return errStoreClosed
	}
	entryBytes, errJson := json.Marshal(value)
	if errJson != nil {
		return fmt.Errorf("%w: failed to marshal entry for key '%s': %w", utils.ErrParsing, string(key), errJson)
	}

	var isNew bool
	err := s.dbUpdate(func(txn *badger.Txn) error {
		// Reset on every attempt; a retried conflict may find the key written
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		return fmt.Errorf("%w: failed setting key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// CheckImageStatus implements ImageStore
func (s *BadgerStore) CheckImageStatus(imgURL string) (models.ImageStatus, *models.ImageDBEntry, error) {
	var entry models.ImageDBEntry
	found, err := s.getJSON([]byte(imageKeyPrefix+imgURL), &entry)
	if err != nil {
		s.log.Errorf("DB View error in CheckImageStatus for '%s': %v", imgURL, err)
		return models.ImageStatusDBError, nil, err
	}
	if !found {
		return models.ImageStatusNotFound, nil, nil
	}
	return entry.Status, &entry, nil
}

// UpdateImageStatus implements ImageStore
func (s *BadgerStore) UpdateImageStatus(imgURL string, entry *models.ImageDBEntry) error {
	if err := s.putJSON([]byte(imageKeyPrefix+imgURL), entry); err != nil {
		s.log.WithField("img_url", imgURL).Errorf("DB Update error in UpdateImageStatus: %v", err)
		return err
	}
	return nil
}

// CheckDocumentStatus implements DocumentStore
func (s *BadgerStore) CheckDocumentStatus(docPath string) (models.DocumentStatus, *models.DocumentDBEntry, error) {
	var entry models.DocumentDBEntry
	found, err := s.getJSON([]byte(documentKeyPrefix+docPath), &entry)
	if err != nil {
		s.log.Errorf("DB View error in CheckDocumentStatus for '%s': %v", docPath, err)
		return models.DocumentStatusDBError, nil, err
	}
	if !found {
		return models.DocumentStatusNotFound, nil, nil
	}
	return entry.Status, &entry, nil
}

// UpdateDocumentStatus implements DocumentStore
func (s *BadgerStore) UpdateDocumentStatus(docPath string, entry *models.DocumentDBEntry) error {
	if err := s.putJSON([]byte(documentKeyPrefix+docPath), entry); err != nil {
		s.log.WithField("doc", docPath).Errorf("DB Update error in UpdateDocumentStatus: %v", err)
		return err
	}
	return nil
}

// GetCount implements StoreAdmin using the cached key count
func (s *BadgerStore) GetCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// ledgerLine renders one record as "kind<TAB>key<TAB>status<TAB>error_type"
func ledgerLine(key, val []byte) (string, bool) {
	var kind string
	var rest []byte
	switch {
	case bytes.HasPrefix(key, []byte(imageKeyPrefix)):
		kind, rest = "image", key[len(imageKeyPrefix):]
	case bytes.HasPrefix(key, []byte(documentKeyPrefix)):
		kind, rest = "document", key[len(documentKeyPrefix):]
	default:
		return "", false
	}

	var meta struct {
		Status    string `json:"status"`
		ErrorType string `json:"error_type"`
	}
	_ = json.Unmarshal(val, &meta) // A bad value still gets listed, with empty status
	if meta.Status == "" {
		meta.Status = "unset"
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\n", kind, rest, meta.Status, meta.ErrorType), true
}

// WriteLedgerLog implements StoreAdmin
func (s *BadgerStore) WriteLedgerLog(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		s.log.Errorf("Failed create ledger log '%s': %v", filePath, err)
		return fmt.Errorf("%w: create ledger log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	var writeErr error
	writtenCount := 0

	iterErr := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := s.ctx.Err(); err != nil {
				s.log.Warnf("WriteLedgerLog scan interrupted by context cancellation: %v", err)
				return err
			}

			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				s.log.Errorf("Error reading value for key '%s': %v", string(key), err)
				continue
			}

			line, ok := ledgerLine(key, val)
			if !ok {
				s.log.Warnf("Skipping unexpected key in ledger (no img/doc prefix): %s", string(key))
				continue
			}
			if _, err := writer.WriteString(line); err != nil && writeErr == nil {
				writeErr = err
			}
			writtenCount++
		}
		return nil
	})

	if flushErr := writer.Flush(); flushErr != nil && writeErr == nil {
		writeErr = flushErr
	}
	if syncErr := file.Sync(); syncErr != nil && writeErr == nil {
		writeErr = syncErr
	}

	if iterErr != nil {
		return iterErr
	}
	if writeErr != nil {
		s.log.Warnf("Finished writing ledger log with errors. Wrote ~%d records to %s", writtenCount, filePath)
		return fmt.Errorf("%w: write ledger log '%s': %w", utils.ErrFilesystem, filePath, writeErr)
	}
	s.log.Infof("Wrote %d ledger records to %s", writtenCount, filePath)
	return nil
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}

	// A single run rarely leaves much garbage; one pass keeps the value log bounded
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Debugf("BadgerDB GC: %v", err)
			}
			break
		}
	}

	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing ledger DB: %v", err)
		return fmt.Errorf("%w: close: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Ledger DB closed")
	return nil
}
