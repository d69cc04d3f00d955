package boltstore

import (
	"bytes"
	"sync"
	"time"

	"github.com/boltdb/bolt"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// Storage is a query.Storage persisting documents in a bolt database. Each
// resource is a bucket and each document is stored under its path.
//
// buckets:
// - resource name: path -> zstd compressed yaml document
type Storage struct {
	path string

	mu sync.RWMutex
	db *bolt.DB
}

var _ query.Storage = (*Storage)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Storage{path: path, db: db}, nil
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

// Close closes the database. Further operations fail.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Storage) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.View(fn)
}

func (s *Storage) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(fn)
}

// Resources returns the names of all resources in the database, sorted.
func (s *Storage) Resources() ([]string, error) {
	var names []string
	err := s.view(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

// Drop deletes a resource with all its documents.
func (s *Storage) Drop(resource string) error {
	return s.update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(resource))
		if err == bolt.ErrBucketNotFound {
			return query.ErrResourceNotFound.New(query.InputInfo{}, resource)
		}
		return err
	})
}

// Open implements the query.Storage interface. Documents are decoded eagerly
// inside the read transaction.
func (s *Storage) Open(ctx *query.Context, resource, path string) (query.Iter, error) {
	span, ctx := ctx.Span("boltstore.Open")
	defer span.Finish()

	var docs []query.Item
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(resource))
		if b == nil {
			return query.ErrResourceNotFound.New(query.InputInfo{}, resource)
		}

		prefix := []byte(path)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			doc, err := decode(resource, string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetTag("documents", len(docs))
	ctx.Logger().WithField("resource", resource).Debugf("opened %d documents", len(docs))
	return query.ValueIter(query.NewItemSeq(docs)), nil
}

// Store implements the query.Storage interface.
func (s *Storage) Store(ctx *query.Context, resource, path string, v query.Value) error {
	span, ctx := ctx.Span("boltstore.Store")
	defer span.Finish()

	data, err := encode(query.DocumentOf(path, v))
	if err != nil {
		return err
	}

	err = s.update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(resource))
		if err != nil {
			return err
		}
		return b.Put([]byte(path), data)
	})
	if err != nil {
		return err
	}

	ctx.Logger().WithField("resource", resource).Debugf("stored %s", path)
	return nil
}
