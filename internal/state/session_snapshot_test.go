package state

import (
	"context"
	"sync"
	"testing"

	"arb-sim-bot/internal/risk"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	snapshot := SessionSnapshot{
		SessionID: "3e3c2f7a-57a4-4a5e-9f6b-2f93a34f8d11",
		SavedAtMS: 1724580000000,
		Symbol:    "BTCUSDT",
		Risk: risk.Snapshot{
			Positions: []risk.Position{
				{Venue: "binance", Symbol: "BTCUSDT", Quantity: 0.5, AvgPrice: 49000},
				{Venue: "kraken", Symbol: "BTCUSDT", Quantity: -0.5, AvgPrice: 50000},
			},
			DailyPnL:    450.5,
			TotalPnL:    450.5,
			HighWater:   10450.5,
			LastTradeID: 1,
			Seen:        3,
			Taken:       1,
			Rejected:    2,
		},
	}
	if err := SaveSessionSnapshot(ctx, store, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	got, ok, err := LoadSessionSnapshot(ctx, store)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot to be present")
	}
	if got.SessionID != snapshot.SessionID || got.SavedAtMS != snapshot.SavedAtMS || got.Symbol != snapshot.Symbol {
		t.Fatalf("unexpected snapshot header: %#v", got)
	}
	if got.Risk.TotalPnL != snapshot.Risk.TotalPnL || got.Risk.LastTradeID != snapshot.Risk.LastTradeID {
		t.Fatalf("unexpected risk state: %#v", got.Risk)
	}
	if len(got.Risk.Positions) != 2 || got.Risk.Positions[0] != snapshot.Risk.Positions[0] {
		t.Fatalf("unexpected positions: %#v", got.Risk.Positions)
	}
}

func TestSessionSnapshotMissing(t *testing.T) {
	store := &memoryStore{}
	got, ok, err := LoadSessionSnapshot(context.Background(), store)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if ok {
		t.Fatalf("expected no snapshot, got %#v", got)
	}
}

func TestSessionSnapshotInvalid(t *testing.T) {
	store := &memoryStore{items: map[string]string{SessionSnapshotKey: "{"}}
	_, _, err := LoadSessionSnapshot(context.Background(), store)
	if err == nil {
		t.Fatalf("expected error for invalid snapshot JSON")
	}
}

func TestSessionSnapshotNilStore(t *testing.T) {
	if err := SaveSessionSnapshot(context.Background(), nil, SessionSnapshot{}); err != nil {
		t.Fatalf("nil store save: %v", err)
	}
	_, ok, err := LoadSessionSnapshot(context.Background(), nil)
	if err != nil || ok {
		t.Fatalf("expected empty result from nil store, ok=%v err=%v", ok, err)
	}
	if err := DeleteSessionSnapshot(context.Background(), nil); err != nil {
		t.Fatalf("nil store delete: %v", err)
	}
}
