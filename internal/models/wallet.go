package models

import "time"

// Wallet provenance — which tier produced the record.
const (
	WalletProvenanceLedger    = "ledger"
	WalletProvenanceSecondary = "secondary"
	WalletProvenanceCache     = "cache"
	WalletProvenanceCreated   = "created"
)

// WalletCacheTTL is the staleness window of cached wallet records,
// measured against LastAccessed, not creation time.
const WalletCacheTTL = 30 * 24 * time.Hour

// WalletRecord is the single wallet view shared by all tiers.
// OwnerID is the case-normalized anonymous owner identity (64-char hex).
// PrivateKey is present only on records held by the owner's own side
// (fresh creations and the local cache); it never reaches the secondary
// store or the ledger registry and never serializes into API responses.
type WalletRecord struct {
	OwnerID      string    `json:"owner_id"`
	Address      string    `json:"address"` // 0x + 40 hex
	PublicKey    string    `json:"public_key"`
	PrivateKey   string    `json:"-"`
	Balance      string    `json:"balance"` // wei, decimal string
	Provenance   string    `json:"provenance"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Balance sources reported by the refresher.
const (
	BalanceSourceChain     = "chain"
	BalanceSourceSecondary = "secondary"
	BalanceSourceCache     = "cache"
	BalanceSourceNone      = "none"
)

type BalanceStatus struct {
	OwnerID   string    `json:"owner_id"`
	Address   string    `json:"address"`
	Balance   string    `json:"balance"`
	Source    string    `json:"source"`
	Stale     bool      `json:"stale"`
	CheckedAt time.Time `json:"checked_at"`
}
