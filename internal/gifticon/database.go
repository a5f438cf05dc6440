package gifticon

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/giftguard/internal/extract"
)

const (
	bucketName = "gifticons"
	// keysBucketName maps unique keys (source reference, redemption code)
	// to the ID of the gifticon that owns them.
	keysBucketName = "gifticon_keys"
)

// DB defines the interface for database operations
type DB interface {
	// InsertGifticon stores a new gifticon. It returns ErrDuplicate when
	// the source image or the redemption code is already stored.
	InsertGifticon(g *Gifticon) error

	// GetGifticon retrieves a gifticon by ID
	GetGifticon(id string) (*Gifticon, error)

	// HasSource reports whether a gifticon from the given source is stored
	HasSource(sourceRef string) (bool, error)

	// ListGifticons returns all gifticons, soonest expiry first
	ListGifticons() ([]*Gifticon, error)

	// DeleteGifticon removes a gifticon and releases its unique keys
	DeleteGifticon(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketName, keysBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// uniqueKeys returns the index entries a gifticon claims.
func uniqueKeys(g *Gifticon) [][]byte {
	keys := [][]byte{[]byte("source:" + g.SourceRef)}
	if g.Code != "" && g.Code != extract.CodeNotFound {
		keys = append(keys, []byte("code:"+g.Code))
	}
	return keys
}

// InsertGifticon checks the unique index and writes the record in a single
// transaction.
func (b *BoltDB) InsertGifticon(g *Gifticon) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		index := tx.Bucket([]byte(keysBucketName))

		if bucket.Get([]byte(g.ID)) != nil {
			return fmt.Errorf("%w: id %s", ErrDuplicate, g.ID)
		}
		keys := uniqueKeys(g)
		for _, k := range keys {
			if owner := index.Get(k); owner != nil {
				return fmt.Errorf("%w: %s already stored as %s", ErrDuplicate, k, owner)
			}
		}

		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshaling gifticon: %w", err)
		}
		if err := bucket.Put([]byte(g.ID), data); err != nil {
			return err
		}
		for _, k := range keys {
			if err := index.Put(k, []byte(g.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGifticon retrieves a gifticon by ID
func (b *BoltDB) GetGifticon(id string) (*Gifticon, error) {
	var g *Gifticon
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// HasSource looks the source reference up in the unique index
func (b *BoltDB) HasSource(sourceRef string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(keysBucketName)).Get([]byte("source:"+sourceRef)) != nil
		return nil
	})
	return found, err
}

// ListGifticons returns all gifticons, soonest expiry first
func (b *BoltDB) ListGifticons() ([]*Gifticon, error) {
	gifticons := make([]*Gifticon, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var g Gifticon
			if err := json.Unmarshal(v, &g); err != nil {
				return fmt.Errorf("unmarshaling gifticon: %w", err)
			}
			gifticons = append(gifticons, &g)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortByExpiry(gifticons)
	return gifticons, nil
}

// DeleteGifticon removes a gifticon and its unique keys
func (b *BoltDB) DeleteGifticon(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var g Gifticon
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("unmarshaling gifticon: %w", err)
		}

		index := tx.Bucket([]byte(keysBucketName))
		for _, k := range uniqueKeys(&g) {
			if string(index.Get(k)) == id {
				if err := index.Delete(k); err != nil {
					return err
				}
			}
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// sortByExpiry orders gifticons by expiry date, then by creation time.
func sortByExpiry(gifticons []*Gifticon) {
	sort.SliceStable(gifticons, func(i, j int) bool {
		if gifticons[i].ExpiryDate != gifticons[j].ExpiryDate {
			return gifticons[i].ExpiryDate < gifticons[j].ExpiryDate
		}
		return gifticons[i].CreatedAt.Before(gifticons[j].CreatedAt)
	})
}
