package boltrunstore

import (
	"errors"

	bolt "go.etcd.io/bbolt"
)

// Index is a bucket type that encodes both a label and an identifier,
// for use as a sentinel marker to show the presence of a thing. For a
// users index, where we want a list of run ids per user, the index looks
// like
//
//	idx_users
//	   |----- USER ID 1
//	             |---- RUNID 1
//	             |---- RUNID 2
//	   |----- USER ID 2
//	    .....
//
// In some cases, such as the index of in-progress runs, there is no label
// and the subpath is excluded.
type Index struct {
	rootBucketPath *BucketPath
}

func NewIndex(bucketPath string) *Index {
	return &Index{
		rootBucketPath: NewBucketPath(bucketPath),
	}
}

func (i *Index) Add(tx *bolt.Tx, identifier []byte, subpath ...[]byte) error {
	bkt, err := i.rootBucketPath.Sub(subpath...).Get(tx, true)
	if err != nil {
		return err
	}

	return bkt.Put(identifier, []byte(""))
}

func (i *Index) List(tx *bolt.Tx, subpath ...[]byte) ([][]byte, error) {
	bkt, err := i.rootBucketPath.Sub(subpath...).Get(tx, false)
	if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
		return nil, err
	}

	result := make([][]byte, 0, DefaultBucketSearchSliceSize)
	if bkt == nil {
		// If the bucket we are looking to list does not exist, then
		// return the empty results
		return result, nil
	}

	err = bkt.ForEach(func(k []byte, _ []byte) error {
		result = append(result, k)
		return nil
	})
	return result, err
}

func (i *Index) Remove(tx *bolt.Tx, identifier []byte, subpath ...[]byte) error {
	bkt, err := i.rootBucketPath.Sub(subpath...).Get(tx, false)
	if err != nil {
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	}

	return bkt.Delete(identifier)
}
