package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	connectionsBucket = []byte("connections")
	eventsBucket      = []byte("events")
)

// BoltStore is a Store backed by a BBolt database. Connection IDs are kept in
// a sequence-keyed index; each connection's events live in a nested bucket
// keyed by sequence number.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore returns a Store backed by the given BBolt database.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(connectionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("initializing journal buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// NewBoltStoreFromFile opens a BBolt database at path and returns a Store.
func NewBoltStoreFromFile(path string, options *bbolt.Options) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func seqKey(n uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], n)
	return k[:]
}

func (s *BoltStore) Append(ev Event) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket(eventsBucket)
		conn := events.Bucket([]byte(ev.ConnID))
		if conn == nil {
			var err error
			conn, err = events.CreateBucket([]byte(ev.ConnID))
			if err != nil {
				return err
			}
			index := tx.Bucket(connectionsBucket)
			seq, err := index.NextSequence()
			if err != nil {
				return err
			}
			if err := index.Put(seqKey(seq), []byte(ev.ConnID)); err != nil {
				return err
			}
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		seq, err := conn.NextSequence()
		if err != nil {
			return err
		}
		return conn.Put(seqKey(seq), data)
	})
}

func (s *BoltStore) List(connID string) ([]Event, error) {
	var out []Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		conn := tx.Bucket(eventsBucket).Bucket([]byte(connID))
		if conn == nil {
			return fmt.Errorf("%s: %w", connID, ErrNotFound)
		}
		return conn.ForEach(func(_, v []byte) error {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Connections() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(connectionsBucket).ForEach(func(_, v []byte) error {
			ids = append(ids, string(v))
			return nil
		})
	})
	return ids, err
}
