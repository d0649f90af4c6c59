// Package checkpoint stores trial seeds and finished stages, so an
// interrupted experiment can be resumed.
package checkpoint

import (
	"encoding/binary"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// SEEDS is the bucket name for trial seeds.
var SEEDS = []byte("seeds")

// DONE is the bucket name for finished stages.
var DONE = []byte("done")

// Store provides checkpoint operations. Store with a nil database
// does nothing: seeds are never found and no stage is done.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the checkpoint database.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore creates a store using an open database. db can be nil.
func NewStore(db *bolt.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seed returns the seed saved for the key.
func (s *Store) Seed(key string) (seed uint64, ok bool, err error) {
	b, err := LoadData(s.db, SEEDS, []byte(key))
	if err != nil || len(b) != 8 {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(b), true, nil
}

// SetSeed saves the seed for the key.
func (s *Store) SetSeed(key string, seed uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seed)
	err := SaveData(s.db, SEEDS, []byte(key), b)
	if err != nil {
		log.Error("Error saving seed", err)
	}
	return err
}

// Done returns true if the stage was marked as finished.
func (s *Store) Done(stage string) (bool, error) {
	b, err := LoadData(s.db, DONE, []byte(stage))
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

// SetDone marks the stage as finished.
func (s *Store) SetDone(stage string) error {
	t, err := time.Now().MarshalBinary()
	if err != nil {
		return err
	}
	err = SaveData(s.db, DONE, []byte(stage), t)
	if err != nil {
		log.Error("Error saving checkpoint", err)
	} else {
		log.Debugf("Checkpoint: %s", stage)
	}
	return err
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, bucket, key, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database. Missing keys give nil.
func LoadData(db *bolt.DB, bucket, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}

		v := b.Get(key)
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
