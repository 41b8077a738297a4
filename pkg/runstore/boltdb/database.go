package boltrunstore

import (
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	DefaultDatabasePermissions   = 0600
	DefaultBucketSearchSliceSize = 16
)

func GetDatabase(path string) (*bolt.DB, error) {
	database, err := bolt.Open(path, DefaultDatabasePermissions, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	return database, nil
}

// GetBucketData is a helper that will use the provided details to find
// a key in a specific bucket and return its data.
func GetBucketData(tx *bolt.Tx, bucketPath *BucketPath, key []byte) []byte {
	b, err := bucketPath.Get(tx, false)
	if err != nil {
		return nil
	}
	return b.Get(key)
}

type BucketPath struct {
	path string
}

// NewBucketPath creates a bucket path which can be used to describe the
// nested relationship between buckets, rather than calling b.Bucket() on
// each b found.  BucketPaths are typically described using strings like
// "root.bucket.here".
func NewBucketPath(sections ...string) *BucketPath {
	return &BucketPath{
		path: strings.Join(sections, "."),
	}
}

// Sub returns a new BucketPath with the provided components appended.
func (bp *BucketPath) Sub(components ...[]byte) *BucketPath {
	sections := []string{bp.path}
	for _, component := range components {
		sections = append(sections, string(component))
	}
	return NewBucketPath(sections...)
}

// Get retrieves the Bucket, or an error, for the bucket found at this path
func (bp *BucketPath) Get(tx *bolt.Tx, create bool) (*bolt.Bucket, error) {
	path := strings.Split(bp.path, ".")

	type BucketMaker interface {
		Bucket([]byte) *bolt.Bucket
		CreateBucketIfNotExists([]byte) (*bolt.Bucket, error)
	}

	getBucket := func(root BucketMaker, name string) (*bolt.Bucket, error) {
		bucket := root.Bucket([]byte(name))
		return bucket, nil
	}
	if create {
		getBucket = func(root BucketMaker, name string) (*bolt.Bucket, error) {
			return root.CreateBucketIfNotExists([]byte(name))
		}
	}

	bucket, err := getBucket(tx, path[0])
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, bolt.ErrBucketNotFound
	}

	for _, name := range path[1:] {
		sub, err := getBucket(bucket, name)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, bolt.ErrBucketNotFound
		}
		bucket = sub
	}

	return bucket, nil
}
