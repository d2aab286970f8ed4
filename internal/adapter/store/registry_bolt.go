package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

var bucketDocuments = []byte("documents")

// BoltRegistry persists document summaries in a bbolt file. Keys are
// DocumentKey(source, fileName), so a cursor walk is already sorted by source
// then file name.
type BoltRegistry struct {
	db *bbolt.DB
}

var _ port.DocumentRegistry = (*BoltRegistry)(nil)

// NewBoltRegistry opens or creates the registry at path.
func NewBoltRegistry(path string) (*BoltRegistry, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init registry: %w", err)
	}

	return &BoltRegistry{db: db}, nil
}

// Put stores or replaces the summary of one document.
func (r *BoltRegistry) Put(doc domain.DocumentSummary) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put([]byte(doc.Key()), data)
	})
}

// Delete removes a document. Missing keys are ignored.
func (r *BoltRegistry) Delete(source, fileName string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Delete([]byte(domain.DocumentKey(source, fileName)))
	})
}

// Clear removes every document.
func (r *BoltRegistry) Clear() error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketDocuments)
		return err
	})
}

// List returns all summaries ordered by source, then file name.
func (r *BoltRegistry) List() ([]domain.DocumentSummary, error) {
	docs := []domain.DocumentSummary{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var d domain.DocumentSummary
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			docs = append(docs, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Close closes the underlying file.
func (r *BoltRegistry) Close() error {
	return r.db.Close()
}
