/*
Package history implements a persistent store of completed lottery draws
backed by BoltDB.
*/
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when there is no draw for the requested round.
var ErrNotFound = errors.New("draw not found")

var drawsBucket = []byte("draws")

// Draw is a completed lottery round.
type Draw struct {
	Round  uint64       `json:"round"`
	Winner util.Uint160 `json:"winner"`
	Prize  *big.Int     `json:"prize"`
	// Tx is the hash of the pickWinner transaction.
	Tx util.Uint256 `json:"tx"`
	// Block is the index of the block the draw was accepted in, it's
	// zero when unknown.
	Block     uint32 `json:"block,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`
}

// Store is a BoltDB-backed draw history.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the history database at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("could not create dir for history: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB instance: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(drawsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize BoltDB instance: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the draw. Storing the same round again overwrites it, so
// replayed notifications don't create duplicates.
func (s *Store) Put(d Draw) error {
	val, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(drawsBucket).Put(roundKey(d.Round), val)
	})
}

// Get returns the draw of the given round.
func (s *Store) Get(round uint64) (*Draw, error) {
	var d *Draw
	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(drawsBucket).Get(roundKey(round))
		if val == nil {
			return ErrNotFound
		}
		d = new(Draw)
		return json.Unmarshal(val, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns all stored draws in ascending round order.
func (s *Store) List() ([]Draw, error) {
	var res []Draw
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(drawsBucket).ForEach(func(_, v []byte) error {
			var d Draw
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			res = append(res, d)
			return nil
		})
	})
	return res, err
}

// Last returns the draw with the highest round number.
func (s *Store) Last() (*Draw, error) {
	var d *Draw
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, val := tx.Bucket(drawsBucket).Cursor().Last()
		if val == nil {
			return ErrNotFound
		}
		d = new(Draw)
		return json.Unmarshal(val, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func roundKey(round uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, round)
	return key
}
