// Package blob stores uploaded file bytes in BadgerDB keyed by an opaque
// id. The routing engine only ever handles the id; bytes flow through once
// on upload and once on download.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no blob exists for a given id.
var ErrNotFound = errors.New("file not found")

// Meta describes a stored blob.
type Meta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Manager is the Badger-backed blob store.
type Manager struct {
	db *badger.DB
}

// NewManager opens the blob database at path.
func NewManager(path string) (*Manager, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open blob database: %w", err)
	}
	return &Manager{db: db}, nil
}

func blobKey(id string) []byte { return []byte("blob:" + id) }
func metaKey(id string) []byte { return []byte("meta:" + id) }

// Store persists data under a fresh id and returns the id. The content type
// is sniffed from the bytes rather than trusted from the client.
func (m *Manager) Store(ctx context.Context, data []byte, filename string) (string, error) {
	id := uuid.New().String()
	meta := Meta{
		Filename:    filename,
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal blob metadata: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blobKey(id), data); err != nil {
			return err
		}
		return txn.Set(metaKey(id), metaBytes)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return id, nil
}

// Fetch returns the bytes and metadata stored under id.
func (m *Manager) Fetch(ctx context.Context, id string) ([]byte, Meta, error) {
	var data []byte
	var meta Meta

	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}

		metaItem, err := txn.Get(metaKey(id))
		if err != nil {
			return err
		}
		return metaItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, Meta{}, ErrNotFound
	}
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to fetch blob: %w", err)
	}
	return data, meta, nil
}

// Close flushes and closes the underlying database.
func (m *Manager) Close() error {
	return m.db.Close()
}
