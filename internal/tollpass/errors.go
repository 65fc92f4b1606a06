package tollpass

import "errors"

// Validation failure reasons, one per gate. Scan surfaces report these
// verbatim so a failed scan always says which gate failed.
const (
	ReasonMalformedPayload     = "malformed_payload"
	ReasonExpiredAuthorization = "expired_authorization"
	ReasonUnknownVehicleClass  = "unknown_vehicle_class"
	ReasonSignatureFormat      = "signature_format"
	ReasonSignatureMismatch    = "signature_mismatch"
)

var (
	ErrMalformedPayload     = errors.New("malformed authorization payload")
	ErrExpiredAuthorization = errors.New("authorization outside validity window")
	ErrUnknownVehicleClass  = errors.New("unknown vehicle class")
	ErrSignatureFormat      = errors.New("malformed signature")
	ErrSignatureMismatch    = errors.New("signature does not match wallet address")

	// Owner-side signing failures.
	ErrSigningUnavailable     = errors.New("signer unavailable")
	ErrSigningAddressMismatch = errors.New("signer bound to a different address")
	ErrSigningDeclined        = errors.New("signing declined")
)
