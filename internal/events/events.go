package events

import "context"

// Event types
const (
	EventScanAccepted      = "scan_accepted"
	EventScanRejected      = "scan_rejected"
	EventWalletCreated     = "wallet_created"
	EventBalanceRefreshed  = "balance_refreshed"
	EventTollDebitDetected = "toll_debit_detected"
	EventTariffUpdated     = "tariff_updated"
)

// StreamToll is the pub/sub channel carrying every toll event.
// Подписчики фильтруют по Event.Type.
const StreamToll = "events:toll"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
