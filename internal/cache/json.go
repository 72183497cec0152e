package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// GetOrLoadJSON serves key from store, or calls load and caches its JSON.
// Cache failures are logged and fall through to load; they never fail the
// request. hit reports whether the value came from the cache.
func GetOrLoadJSON[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (val T, hit bool, err error) {
	if b, ok, gerr := store.Get(ctx, key); gerr != nil {
		slog.WarnContext(ctx, "cache get failed", "key", key, "err", gerr)
	} else if ok {
		if uerr := json.Unmarshal(b, &val); uerr == nil {
			return val, true, nil
		}
		_ = store.Delete(ctx, key)
	}

	val, err = load(ctx)
	if err != nil {
		return val, false, err
	}

	if b, merr := json.Marshal(val); merr == nil {
		if serr := store.Set(ctx, key, b, ttl); serr != nil {
			slog.WarnContext(ctx, "cache set failed", "key", key, "err", serr)
		}
	}
	return val, false, nil
}
