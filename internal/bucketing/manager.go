package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

// BucketingManager spreads users across partition buckets so no single
// Scylla partition carries the whole user table.
type BucketingManager struct {
	userBuckets int
	hasherPool  sync.Pool
}

func NewBucketingManager(userBuckets int) *BucketingManager {
	bm := &BucketingManager{
		userBuckets: userBuckets,
	}

	// Pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// PhoneBucket returns the consistent bucket for a phone number
// (0 to userBuckets-1). The same phone always lands in the same bucket,
// which is what makes the phone_to_user lookup table work.
func (bm *BucketingManager) PhoneBucket(phone string) int {
	return bm.getBucket(phone, bm.userBuckets)
}

func (bm *BucketingManager) UserBuckets() int {
	return bm.userBuckets
}

func (bm *BucketingManager) getBucket(key string, numBuckets int) int {
	return int(bm.getHash(key) % uint64(numBuckets))
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
