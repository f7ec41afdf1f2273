package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"dealdesk-backend/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	stampPrefix   = "reconcile:stamp:"
	pendingPrefix = "reconcile:pending:"
	stampTTL      = 24 * time.Hour
)

// RevisionStamp hashes the deal set's identity-plus-status pairs. Two loads
// of the same unadvanced data produce the same stamp, so the guard is a
// property of the data rather than of hidden process state.
func RevisionStamp(deals []domain.Deal) string {
	pairs := make([]string, 0, len(deals))
	for _, d := range deals {
		pairs = append(pairs, d.DealID.String()+":"+d.Status)
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		fmt.Fprintln(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// guard tracks the last reconciled revision per session in Redis. A nil
// client disables the guard (every pass runs).
type guard struct {
	rdb *redis.Client
}

func (g *guard) alreadyProcessed(ctx context.Context, sessionID, stamp string) bool {
	if g.rdb == nil || sessionID == "" {
		return false
	}
	last, err := g.rdb.Get(ctx, stampPrefix+sessionID).Result()
	return err == nil && last == stamp
}

func (g *guard) record(ctx context.Context, sessionID, stamp string) {
	if g.rdb == nil || sessionID == "" {
		return
	}
	// Best effort: a lost stamp only costs one redundant (idempotent) pass.
	_ = g.rdb.Set(ctx, stampPrefix+sessionID, stamp, stampTTL).Err()
}

// recordPending keeps the last unanswered prompt next to the stamp, so a
// skipped pass can still surface it. Answering the prompt changes the deal
// set (or its statuses), which voids the stamp and clears the cache.
func (g *guard) recordPending(ctx context.Context, sessionID string, pending *PendingDecision) {
	if g.rdb == nil || sessionID == "" {
		return
	}
	if pending == nil {
		_ = g.rdb.Del(ctx, pendingPrefix+sessionID).Err()
		return
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return
	}
	_ = g.rdb.Set(ctx, pendingPrefix+sessionID, payload, stampTTL).Err()
}

func (g *guard) pendingDecision(ctx context.Context, sessionID string) *PendingDecision {
	if g.rdb == nil || sessionID == "" {
		return nil
	}
	payload, err := g.rdb.Get(ctx, pendingPrefix+sessionID).Bytes()
	if err != nil {
		return nil
	}
	var pending PendingDecision
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil
	}
	return &pending
}
