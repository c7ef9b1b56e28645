package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// DiskStore is the embedded repository used when no database is configured.
//
// Keys:
//
//	tr/<session>/<unix nanos>/<id>   transcript JSON
//	ex/<session>/<unix nanos>/<id>   exchange JSON
//	exid/<id>                        key of the exchange record
type DiskStore struct {
	db *badger.DB
}

var _ Repository = (*DiskStore)(nil)

// OpenDisk opens (or creates) a store under dir. An empty dir keeps
// everything in memory.
func OpenDisk(dir string, logger *slog.Logger) (*DiskStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &DiskStore{db: db}, nil
}

func (d *DiskStore) Close() {
	_ = d.db.Close()
}

func recordKey(kind, sessionID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s/%s/%020d/%s", kind, sessionID, at.UnixNano(), id))
}

func (d *DiskStore) WriteTranscript(_ context.Context, t Transcript) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	val, err := json.Marshal(t)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal transcript: %w", err)
	}
	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey("tr", t.SessionID, t.CreatedAt, t.ID), val)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("write transcript: %w", err)
	}
	return t.ID, nil
}

func (d *DiskStore) WriteExchange(_ context.Context, e Exchange) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal exchange: %w", err)
	}
	key := recordKey("ex", e.SessionID, e.CreatedAt, e.ID)
	err = d.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set([]byte("exid/"+e.ID.String()), key)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("write exchange: %w", err)
	}
	return e.ID, nil
}

func (d *DiskStore) GetExchange(_ context.Context, id uuid.UUID) (*Exchange, error) {
	var e Exchange
	err := d.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get([]byte("exid/" + id.String()))
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange: %w", err)
	}
	return &e, nil
}

func (d *DiskStore) ListExchanges(_ context.Context, sessionID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	prefix := []byte("ex/" + sessionID + "/")
	var out []Exchange
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key not greater than the seek key.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var e Exchange
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	return out, nil
}

// ListTranscripts returns a session's transcripts, oldest first.
func (d *DiskStore) ListTranscripts(_ context.Context, sessionID string) ([]Transcript, error) {
	prefix := []byte("tr/" + sessionID + "/")
	var out []Transcript
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var t Transcript
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return out, nil
}

// badgerLogger routes badger's warnings and errors into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf("badger: "+f, v...))
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf("badger: "+f, v...))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
