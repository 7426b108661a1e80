package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/cart"
)

// Recovery persists cart snapshots to Redis so an open session survives a
// process restart. Opt-in and best-effort only; the in-memory store remains
// the source of truth.
type Recovery struct {
	R   *redis.Client
	TTL time.Duration
}

func recoveryKey(id string) string {
	return "session:cart:" + id
}

// Save stores the snapshot under the session id. An empty snapshot still
// writes, so a cleared cart is recovered as cleared.
func (rc *Recovery) Save(ctx context.Context, id string, lines []cart.Line) error {
	if rc == nil || rc.R == nil || id == "" {
		return nil
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return rc.R.Set(ctx, recoveryKey(id), data, rc.ttl()).Err()
}

// Load restores a snapshot; it reports whether one existed.
func (rc *Recovery) Load(ctx context.Context, id string) ([]cart.Line, bool, error) {
	if rc == nil || rc.R == nil || id == "" {
		return nil, false, nil
	}
	data, err := rc.R.Get(ctx, recoveryKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, false, err
	}
	return lines, true, nil
}

// Drop removes the recovery snapshot.
func (rc *Recovery) Drop(ctx context.Context, id string) error {
	if rc == nil || rc.R == nil || id == "" {
		return nil
	}
	return rc.R.Del(ctx, recoveryKey(id)).Err()
}

func (rc *Recovery) ttl() time.Duration {
	if rc.TTL <= 0 {
		return 24 * time.Hour
	}
	return rc.TTL
}
