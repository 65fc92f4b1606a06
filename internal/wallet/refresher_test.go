package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/events"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

type fakeReader struct {
	balance string
	err     error
	calls   int
}

func (f *fakeReader) BalanceOf(ctx context.Context, address string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.balance, nil
}

type fakePublisher struct {
	published []events.Event
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func TestRefreshNow_ChainWins(t *testing.T) {
	rec := testRecord(testOwner)
	reader := &fakeReader{balance: "5000000000000000"}
	secondary := &fakeSecondary{recs: map[string]models.WalletRecord{testOwner: rec}}
	cache := &fakeCache{recs: map[string]models.WalletRecord{testOwner: rec}}
	pub := &fakePublisher{}

	status := NewRefresher(reader, secondary, cache, pub, zap.NewNop()).
		RefreshNow(context.Background(), testOwner, rec.Address)

	if status.Source != models.BalanceSourceChain {
		t.Errorf("Source = %q, want %q", status.Source, models.BalanceSourceChain)
	}
	if status.Stale {
		t.Error("chain read must not be stale")
	}
	if status.Balance != "5000000000000000" {
		t.Errorf("Balance = %q, want fresh chain value", status.Balance)
	}

	if cached := cache.recs[testOwner]; cached.Balance != "5000000000000000" {
		t.Errorf("cache balance = %q, not updated", cached.Balance)
	}
	if !cache.recs[testOwner].LastAccessed.After(rec.LastAccessed) {
		t.Error("fresh read must touch LastAccessed")
	}
	if stored := secondary.recs[testOwner]; stored.Balance != "5000000000000000" {
		t.Errorf("secondary balance = %q, not updated", stored.Balance)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	if pub.published[0].Type != events.EventBalanceRefreshed {
		t.Errorf("event type = %q, want %q", pub.published[0].Type, events.EventBalanceRefreshed)
	}
	if pub.published[0].Payload["balance"] != "5000000000000000" {
		t.Errorf("event balance = %v", pub.published[0].Payload["balance"])
	}
}

func TestRefreshNow_SecondaryFallback(t *testing.T) {
	rec := testRecord(testOwner)
	rec.Balance = "777"
	reader := &fakeReader{err: errors.New("all endpoints down")}
	secondary := &fakeSecondary{recs: map[string]models.WalletRecord{testOwner: rec}}
	cache := &fakeCache{recs: map[string]models.WalletRecord{testOwner: testRecord(testOwner)}}

	status := NewRefresher(reader, secondary, cache, nil, zap.NewNop()).
		RefreshNow(context.Background(), testOwner, rec.Address)

	if status.Source != models.BalanceSourceSecondary {
		t.Errorf("Source = %q, want %q", status.Source, models.BalanceSourceSecondary)
	}
	if status.Balance != "777" {
		t.Errorf("Balance = %q, want secondary value", status.Balance)
	}
	if cache.recs[testOwner].Balance != "777" {
		t.Error("cache not updated from secondary fallback")
	}
}

func TestRefreshNow_StaleCacheFallback(t *testing.T) {
	rec := testRecord(testOwner)
	rec.Balance = "13"
	reader := &fakeReader{err: errors.New("all endpoints down")}
	cache := &fakeCache{recs: map[string]models.WalletRecord{testOwner: rec}}

	status := NewRefresher(reader, &fakeSecondary{}, cache, nil, zap.NewNop()).
		RefreshNow(context.Background(), testOwner, rec.Address)

	if status.Source != models.BalanceSourceCache {
		t.Errorf("Source = %q, want %q", status.Source, models.BalanceSourceCache)
	}
	if !status.Stale {
		t.Error("cache fallback must report staleness")
	}
	if status.Balance != "13" {
		t.Errorf("Balance = %q, want previous cached value", status.Balance)
	}
}

func TestRefreshNow_NothingKnown(t *testing.T) {
	reader := &fakeReader{err: errors.New("all endpoints down")}

	status := NewRefresher(reader, &fakeSecondary{}, &fakeCache{}, nil, zap.NewNop()).
		RefreshNow(context.Background(), testOwner, "0x52908400098527886E0F7030069857D2E4169EE7")

	if status.Source != models.BalanceSourceNone {
		t.Errorf("Source = %q, want %q", status.Source, models.BalanceSourceNone)
	}
	if !status.Stale {
		t.Error("unknown balance must report staleness")
	}
	if status.Balance != "0" {
		t.Errorf("Balance = %q, want 0", status.Balance)
	}
	if status.CheckedAt.IsZero() || time.Since(status.CheckedAt) > time.Minute {
		t.Errorf("CheckedAt = %v, want recent", status.CheckedAt)
	}
}

func TestRefreshNow_ToleratesBrokenTiers(t *testing.T) {
	reader := &fakeReader{balance: "42"}
	secondary := &fakeSecondary{err: errors.New("db down")}
	cache := &fakeCache{err: errors.New("redis down")}
	pub := &fakePublisher{err: errors.New("pubsub down")}

	status := NewRefresher(reader, secondary, cache, pub, zap.NewNop()).
		RefreshNow(context.Background(), testOwner, "0x52908400098527886E0F7030069857D2E4169EE7")

	if status.Source != models.BalanceSourceChain {
		t.Errorf("Source = %q, want %q", status.Source, models.BalanceSourceChain)
	}
	if status.Balance != "42" {
		t.Errorf("Balance = %q, want chain value regardless of tier health", status.Balance)
	}
}
