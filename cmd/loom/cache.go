package main

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("artifacts")

// buildCache memoizes compiled artifacts across invocations, keyed by the
// content hash of the template source. Stale entries are simply never hit
// again; the file can be deleted at any time.
type buildCache struct {
	db *bolt.DB
}

func openBuildCache(path string) (*buildCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &buildCache{db: db}, nil
}

func (c *buildCache) Close() error {
	return c.db.Close()
}

// Get loads the artifact stored under hash, or nil on a miss.
func (c *buildCache) Get(hash string) (*artifact, error) {
	var art *artifact
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(cacheBucket).Get([]byte(hash))
		if data == nil {
			return nil
		}
		art = &artifact{}
		return json.Unmarshal(data, art)
	})
	if err != nil {
		return nil, err
	}
	return art, nil
}

func (c *buildCache) Put(hash string, art *artifact) error {
	data, err := json.Marshal(art)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(hash), data)
	})
}
