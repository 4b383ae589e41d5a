package sessionstore

import (
	"go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// BboltStore is a ports.SessionStorage backed by an embedded bbolt
// database, giving session/cookie state durability across restarts the
// way the teacher's in-process caches never needed but a long-lived
// browser session does.
type BboltStore struct {
	db *bbolt.DB
}

// OpenBboltStore opens (creating if absent) a bbolt database at path and
// ensures the sessions bucket exists.
func OpenBboltStore(path string) (*BboltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BboltStore{db: db}, nil
}

func (s *BboltStore) Save(id string, record []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(id), record)
	})
}

func (s *BboltStore) Load(id string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *BboltStore) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(id))
	})
}

func (s *BboltStore) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Close closes the underlying bbolt database.
func (s *BboltStore) Close() error {
	return s.db.Close()
}
