package state

import (
	"context"
	"encoding/json"
	"strings"

	"arb-sim-bot/internal/risk"
)

const SessionSnapshotKey = "session:last_snapshot"

// SessionSnapshot is the periodically persisted simulation state. A
// restarted bot resumes its ledger from here instead of starting a
// fresh session.
type SessionSnapshot struct {
	SessionID string        `json:"session_id"`
	SavedAtMS int64         `json:"saved_at_ms"`
	Symbol    string        `json:"symbol"`
	Risk      risk.Snapshot `json:"risk"`
}

func LoadSessionSnapshot(ctx context.Context, store Store) (SessionSnapshot, bool, error) {
	if store == nil {
		return SessionSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, SessionSnapshotKey)
	if err != nil {
		return SessionSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return SessionSnapshot{}, false, nil
	}
	var snapshot SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return SessionSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveSessionSnapshot(ctx context.Context, store Store, snapshot SessionSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, SessionSnapshotKey, string(payload))
}

func DeleteSessionSnapshot(ctx context.Context, store Store) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return store.Delete(ctx, SessionSnapshotKey)
}
