package models

import (
	"time"

	"github.com/google/uuid"
)

// Transit verdicts. "registered" is the plate-fallback outcome at
// hardware booths: vehicle known, charge settles via the post-paid lane.
const (
	TransitVerdictAccepted   = "accepted"
	TransitVerdictRejected   = "rejected"
	TransitVerdictRegistered = "registered"
)

// Scan channels
const (
	ScanTypeQR    = "qr"
	ScanTypePlate = "plate"
)

// Rejection reasons recorded at the scan surface, on top of the
// validator's own reasons.
const (
	ReasonReplayedAuthorization = "replayed_authorization"
	ReasonDuplicateScan         = "duplicate_scan"
	ReasonWalletNotFound        = "wallet_not_found"
	ReasonWalletMismatch        = "wallet_mismatch"
	ReasonResolutionFailed      = "resolution_failed"
	ReasonUnknownPlate          = "unknown_plate"
)

// TransitEvent is one row per scan at a toll booth. Accepted events carry
// the payload hash; a unique constraint on it is what makes a consumed
// authorization non-replayable.
type TransitEvent struct {
	ID            uuid.UUID `json:"id"`
	BoothID       string    `json:"booth_id"`
	ScanType      string    `json:"scan_type"` // qr / plate
	PayloadHash   *string   `json:"payload_hash,omitempty"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	PlateNumber   *string   `json:"plate_number,omitempty"`
	VehicleClass  *string   `json:"vehicle_class,omitempty"`
	Verdict       string    `json:"verdict"`
	Reason        *string   `json:"reason,omitempty"`
	TollRate      *string   `json:"toll_rate,omitempty"`
	Lat           *float64  `json:"lat,omitempty"`
	Lng           *float64  `json:"lng,omitempty"`
	ScannedAt     time.Time `json:"scanned_at"`
}
