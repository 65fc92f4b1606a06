package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

type fakeLedger struct {
	recs        map[string]models.WalletRecord
	err         error // все вызовы недоступны
	infoCalls   int
	createCalls int
}

func (f *fakeLedger) Exists(ctx context.Context, ownerID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.recs[ownerID]
	return ok, nil
}

func (f *fakeLedger) Info(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	f.infoCalls++
	if f.err != nil {
		return models.WalletRecord{}, f.err
	}
	rec, ok := f.recs[ownerID]
	if !ok {
		return models.WalletRecord{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeLedger) Balance(ctx context.Context, ownerID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	rec, ok := f.recs[ownerID]
	if !ok {
		return "", ErrNotFound
	}
	return rec.Balance, nil
}

func (f *fakeLedger) Create(ctx context.Context, rec models.WalletRecord) error {
	f.createCalls++
	if f.err != nil {
		return f.err
	}
	if f.recs == nil {
		f.recs = map[string]models.WalletRecord{}
	}
	if _, ok := f.recs[rec.OwnerID]; ok {
		return ErrExists
	}
	f.recs[rec.OwnerID] = rec
	return nil
}

type fakeSecondary struct {
	recs        map[string]models.WalletRecord
	err         error
	skipGets    int // столько первых Get отвечают "нет"
	getCalls    int
	putCalls    int
	putNewCalls int
}

func (f *fakeSecondary) Get(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	f.getCalls++
	if f.err != nil {
		return models.WalletRecord{}, f.err
	}
	if f.skipGets > 0 {
		f.skipGets--
		return models.WalletRecord{}, ErrNotFound
	}
	rec, ok := f.recs[ownerID]
	if !ok {
		return models.WalletRecord{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeSecondary) Put(ctx context.Context, rec models.WalletRecord) error {
	f.putCalls++
	if f.err != nil {
		return f.err
	}
	if f.recs == nil {
		f.recs = map[string]models.WalletRecord{}
	}
	f.recs[rec.OwnerID] = rec
	return nil
}

func (f *fakeSecondary) PutNew(ctx context.Context, rec models.WalletRecord) error {
	f.putNewCalls++
	if f.err != nil {
		return f.err
	}
	if _, ok := f.recs[rec.OwnerID]; ok {
		return ErrExists
	}
	if f.recs == nil {
		f.recs = map[string]models.WalletRecord{}
	}
	f.recs[rec.OwnerID] = rec
	return nil
}

func (f *fakeSecondary) UpdateBalance(ctx context.Context, ownerID, balance string) error {
	if f.err != nil {
		return f.err
	}
	rec, ok := f.recs[ownerID]
	if !ok {
		return ErrNotFound
	}
	rec.Balance = balance
	f.recs[ownerID] = rec
	return nil
}

func (f *fakeSecondary) RecentlyActive(ctx context.Context, window time.Duration, limit int) ([]models.WalletRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.WalletRecord, 0, len(f.recs))
	for _, rec := range f.recs {
		out = append(out, rec)
	}
	return out, nil
}

type fakeCache struct {
	recs     map[string]models.WalletRecord
	err      error
	getCalls int
	putCalls int
	delCalls int
}

func (f *fakeCache) Get(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	f.getCalls++
	if f.err != nil {
		return models.WalletRecord{}, f.err
	}
	rec, ok := f.recs[ownerID]
	if !ok {
		return models.WalletRecord{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeCache) Put(ctx context.Context, rec models.WalletRecord) error {
	f.putCalls++
	if f.err != nil {
		return f.err
	}
	if f.recs == nil {
		f.recs = map[string]models.WalletRecord{}
	}
	f.recs[rec.OwnerID] = rec
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, ownerID string) error {
	f.delCalls++
	if f.err != nil {
		return f.err
	}
	delete(f.recs, ownerID)
	return nil
}

const testOwner = "a3f1c2d4e5b6978012345678901234567890123456789012345678901234abcd"

func testRecord(owner string) models.WalletRecord {
	now := time.Now().Add(-time.Hour)
	return models.WalletRecord{
		OwnerID:      owner,
		Address:      "0x52908400098527886E0F7030069857D2E4169EE7",
		PublicKey:    "04deadbeef",
		Balance:      "1000000000000000",
		CreatedAt:    now,
		LastAccessed: now,
	}
}

func newTestResolver(l *fakeLedger, s *fakeSecondary, c *fakeCache) *Resolver {
	return NewResolver(l, s, c, 0, zap.NewNop())
}

func TestResolver_LedgerHitRepairsLowerTiers(t *testing.T) {
	rec := testRecord(testOwner)
	ledger := &fakeLedger{recs: map[string]models.WalletRecord{testOwner: rec}}
	secondary := &fakeSecondary{}
	cache := &fakeCache{}

	got, err := newTestResolver(ledger, secondary, cache).Resolve(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != models.WalletProvenanceLedger {
		t.Errorf("Provenance = %q, want %q", got.Provenance, models.WalletProvenanceLedger)
	}
	if got.Address != rec.Address {
		t.Errorf("Address = %q, want %q", got.Address, rec.Address)
	}
	if _, ok := secondary.recs[testOwner]; !ok {
		t.Error("secondary tier not repaired after ledger hit")
	}
	if _, ok := cache.recs[testOwner]; !ok {
		t.Error("cache tier not repaired after ledger hit")
	}
}

func TestResolver_SecondaryHitAfterConfirmedLedgerMiss(t *testing.T) {
	rec := testRecord(testOwner)
	ledger := &fakeLedger{}
	secondary := &fakeSecondary{recs: map[string]models.WalletRecord{testOwner: rec}}
	cache := &fakeCache{}

	got, err := newTestResolver(ledger, secondary, cache).Resolve(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != models.WalletProvenanceSecondary {
		t.Errorf("Provenance = %q, want %q", got.Provenance, models.WalletProvenanceSecondary)
	}
	if _, ok := cache.recs[testOwner]; !ok {
		t.Error("cache tier not repaired after secondary hit")
	}
	if ledger.createCalls != 0 {
		t.Errorf("ledger written on read path: %d create calls", ledger.createCalls)
	}
	// подтверждённый промах не повторяется
	if ledger.infoCalls != 1 {
		t.Errorf("ledger Info calls = %d, want 1", ledger.infoCalls)
	}
}

func TestResolver_CacheHitWhenUpperTiersUnreachable(t *testing.T) {
	rec := testRecord(testOwner)
	ledger := &fakeLedger{err: errors.New("registry down")}
	secondary := &fakeSecondary{err: errors.New("db down")}
	cache := &fakeCache{recs: map[string]models.WalletRecord{testOwner: rec}}

	got, err := newTestResolver(ledger, secondary, cache).Resolve(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != models.WalletProvenanceCache {
		t.Errorf("Provenance = %q, want %q", got.Provenance, models.WalletProvenanceCache)
	}
	if !got.LastAccessed.After(rec.LastAccessed) {
		t.Error("cache acceptance must touch LastAccessed")
	}
	// недоступный тир повторяется ровно один раз
	if ledger.infoCalls != 2 {
		t.Errorf("ledger Info calls = %d, want 2", ledger.infoCalls)
	}
	if secondary.getCalls != 2 {
		t.Errorf("secondary Get calls = %d, want 2", secondary.getCalls)
	}
}

func TestResolver_StaleCacheEntryIsAMiss(t *testing.T) {
	rec := testRecord(testOwner)
	rec.LastAccessed = time.Now().Add(-31 * 24 * time.Hour)
	ledger := &fakeLedger{}
	secondary := &fakeSecondary{}
	cache := &fakeCache{recs: map[string]models.WalletRecord{testOwner: rec}}

	_, err := newTestResolver(ledger, secondary, cache).Resolve(context.Background(), testOwner)
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("Resolve error = %v, want ErrWalletNotFound", err)
	}
	if cache.delCalls != 1 {
		t.Errorf("stale entry delete calls = %d, want 1", cache.delCalls)
	}
}

func TestResolver_NotFoundIsAnOutcome(t *testing.T) {
	_, err := newTestResolver(&fakeLedger{}, &fakeSecondary{}, &fakeCache{}).
		Resolve(context.Background(), testOwner)
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("Resolve error = %v, want ErrWalletNotFound", err)
	}
	if errors.Is(err, ErrResolutionFailed) {
		t.Error("a confirmed full miss is not a resolution failure")
	}
}

func TestResolver_EnsureCreates(t *testing.T) {
	ledger := &fakeLedger{}
	secondary := &fakeSecondary{}
	cache := &fakeCache{}

	got, err := newTestResolver(ledger, secondary, cache).Ensure(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got.Provenance != models.WalletProvenanceCreated {
		t.Errorf("Provenance = %q, want %q", got.Provenance, models.WalletProvenanceCreated)
	}
	if len(got.Address) != 42 || !strings.HasPrefix(got.Address, "0x") {
		t.Errorf("Address = %q, want 0x + 40 hex", got.Address)
	}
	if got.Balance != "0" {
		t.Errorf("Balance = %q, want 0", got.Balance)
	}
	if got.PrivateKey == "" {
		t.Error("created record must carry key material for the owner")
	}

	stored, ok := secondary.recs[testOwner]
	if !ok {
		t.Fatal("secondary tier missing created record")
	}
	if stored.PrivateKey != "" {
		t.Error("private key leaked into the secondary tier")
	}

	cached, ok := cache.recs[testOwner]
	if !ok {
		t.Fatal("cache tier missing created record")
	}
	if cached.PrivateKey != got.PrivateKey {
		t.Error("cache entry must hold the private key")
	}

	if ledger.createCalls != 1 {
		t.Errorf("ledger create calls = %d, want 1", ledger.createCalls)
	}
	if leak, ok := ledger.recs[testOwner]; !ok {
		t.Error("ledger registration missing")
	} else if leak.PrivateKey != "" {
		t.Error("private key leaked into the ledger tier")
	}
}

func TestResolver_EnsureIsIdempotent(t *testing.T) {
	r := newTestResolver(&fakeLedger{}, &fakeSecondary{}, &fakeCache{})

	first, err := r.Ensure(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	second, err := r.Ensure(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if first.Address != second.Address {
		t.Errorf("two resolutions produced two addresses: %q vs %q", first.Address, second.Address)
	}
}

func TestResolver_CreateRaceAdoptsExistingRecord(t *testing.T) {
	existing := testRecord(testOwner)
	ledger := &fakeLedger{}
	// Чужая запись появляется между нашим Get и PutNew.
	secondary := &fakeSecondary{
		recs:     map[string]models.WalletRecord{testOwner: existing},
		skipGets: 1,
	}
	cache := &fakeCache{}

	got, err := newTestResolver(ledger, secondary, cache).Ensure(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got.Address != existing.Address {
		t.Errorf("Address = %q, want adopted %q", got.Address, existing.Address)
	}
	if got.Provenance != models.WalletProvenanceSecondary {
		t.Errorf("Provenance = %q, want %q", got.Provenance, models.WalletProvenanceSecondary)
	}
	if cached, ok := cache.recs[testOwner]; !ok || cached.Address != existing.Address {
		t.Error("cache not repaired with the adopted record")
	}
}

func TestResolver_CreationFailureAggregates(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("registry down")}
	secondary := &fakeSecondary{err: errors.New("db down")}
	cache := &fakeCache{}

	_, err := newTestResolver(ledger, secondary, cache).Ensure(context.Background(), testOwner)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("Ensure error = %v, want ErrResolutionFailed", err)
	}
	if !strings.Contains(err.Error(), "registry down") || !strings.Contains(err.Error(), "db down") {
		t.Errorf("aggregated error lost tier causes: %v", err)
	}
}

func TestResolver_OwnerNormalization(t *testing.T) {
	rec := testRecord(testOwner)
	ledger := &fakeLedger{recs: map[string]models.WalletRecord{testOwner: rec}}

	got, err := newTestResolver(ledger, &fakeSecondary{}, &fakeCache{}).
		Resolve(context.Background(), "  "+strings.ToUpper(testOwner)+"  ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.OwnerID != testOwner {
		t.Errorf("OwnerID = %q, want normalized %q", got.OwnerID, testOwner)
	}
}

func TestResolver_EmptyOwner(t *testing.T) {
	_, err := newTestResolver(&fakeLedger{}, &fakeSecondary{}, &fakeCache{}).
		Resolve(context.Background(), "   ")
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("Resolve error = %v, want ErrWalletNotFound", err)
	}
}

func TestResolver_LedgerHitKeepsCachedKey(t *testing.T) {
	rec := testRecord(testOwner)
	cached := rec
	cached.PrivateKey = "aa11bb22"

	ledger := &fakeLedger{recs: map[string]models.WalletRecord{testOwner: rec}}
	cache := &fakeCache{recs: map[string]models.WalletRecord{testOwner: cached}}

	got, err := newTestResolver(ledger, &fakeSecondary{}, cache).Resolve(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.PrivateKey != cached.PrivateKey {
		t.Error("ledger hit dropped the locally cached key material")
	}
	if after, ok := cache.recs[testOwner]; !ok || after.PrivateKey != cached.PrivateKey {
		t.Error("write-through clobbered the cached key material")
	}
}
