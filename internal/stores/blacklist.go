package stores

import (
	"context"
	"time"
)

const blacklistPrefix = "blacklist:"

// Blacklist holds access tokens revoked before their natural expiry.
type Blacklist struct {
	kv *KV
}

// NewBlacklist returns a Blacklist over kv.
func NewBlacklist(kv *KV) *Blacklist {
	return &Blacklist{kv: kv}
}

// Add revokes token for ttl, truncated to whole seconds. A ttl under one
// second writes nothing and reports false.
func (b *Blacklist) Add(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ttl = ttl.Truncate(time.Second)
	if ttl <= 0 {
		return false, nil
	}
	if err := b.kv.Set(ctx, blacklistPrefix+token, "true", ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether token has been revoked.
func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	_, ok, err := b.kv.Get(ctx, blacklistPrefix+token)
	return ok, err
}
