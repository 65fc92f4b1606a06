package tollpass

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

const (
	userIDHashLen = 64
	signatureLen  = 132 // 0x + 130 hex = 65 bytes
)

// wireAuthorization is the exact QR wire shape. Unknown legacy fields
// (session tokens, rate hints) are ignored on decode.
type wireAuthorization struct {
	WalletAddress string `json:"walletAddress"`
	VehicleNumber string `json:"vehicleNumber"`
	VehicleType   string `json:"vehicleType"`
	UserID        string `json:"userId"`
	Timestamp     int64  `json:"timestamp"`
	Signature     string `json:"signature"`
	Version       string `json:"version"`
}

// Encode serializes a signed authorization into the QR string.
// Deterministic: the same authorization always encodes to the same bytes.
func Encode(sa SignedAuthorization) (string, error) {
	if err := checkStructure(sa); err != nil {
		return "", err
	}
	return marshalWire(sa)
}

func marshalWire(sa SignedAuthorization) (string, error) {
	data, err := json.Marshal(wireAuthorization{
		WalletAddress: sa.Payload.WalletAddress,
		VehicleNumber: sa.Payload.VehicleNumber,
		VehicleType:   sa.Payload.VehicleType,
		UserID:        sa.Payload.UserID,
		Timestamp:     sa.Payload.Timestamp,
		Signature:     sa.Signature,
		Version:       sa.Payload.Version,
	})
	if err != nil {
		return "", fmt.Errorf("encode authorization: %w", err)
	}
	return string(data), nil
}

// Decode parses scanned QR content. Structural checks only; no
// cryptographic work happens before the surface shape is confirmed.
func Decode(content string) (SignedAuthorization, error) {
	var w wireAuthorization
	if err := json.Unmarshal([]byte(content), &w); err != nil {
		return SignedAuthorization{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	sa := SignedAuthorization{
		Payload: AuthorizationPayload{
			WalletAddress: w.WalletAddress,
			VehicleNumber: w.VehicleNumber,
			VehicleType:   w.VehicleType,
			UserID:        w.UserID,
			Timestamp:     w.Timestamp,
			Version:       w.Version,
		},
		Signature: w.Signature,
	}
	if err := checkStructure(sa); err != nil {
		return SignedAuthorization{}, err
	}
	return sa, nil
}

// checkStructure enforces the wire surface: presence, exact lengths,
// hex-ness, version tag. Shared by the codec and the validator's first
// gate.
func checkStructure(sa SignedAuthorization) error {
	p := sa.Payload

	switch {
	case p.WalletAddress == "":
		return fmt.Errorf("%w: walletAddress is missing", ErrMalformedPayload)
	case p.VehicleNumber == "":
		return fmt.Errorf("%w: vehicleNumber is missing", ErrMalformedPayload)
	case p.VehicleType == "":
		return fmt.Errorf("%w: vehicleType is missing", ErrMalformedPayload)
	case p.UserID == "":
		return fmt.Errorf("%w: userId is missing", ErrMalformedPayload)
	case p.Timestamp == 0:
		return fmt.Errorf("%w: timestamp is missing", ErrMalformedPayload)
	case p.Version == "":
		return fmt.Errorf("%w: version is missing", ErrMalformedPayload)
	case sa.Signature == "":
		return fmt.Errorf("%w: signature is missing", ErrMalformedPayload)
	}

	if !common.IsHexAddress(p.WalletAddress) || !strings.HasPrefix(p.WalletAddress, "0x") {
		return fmt.Errorf("%w: walletAddress must be a 0x-prefixed 40-hex address", ErrMalformedPayload)
	}
	if !models.IsValidPlateNumber(p.VehicleNumber) {
		return fmt.Errorf("%w: vehicleNumber must be %d-%d characters, got %d",
			ErrMalformedPayload, models.PlateNumberMinLen, models.PlateNumberMaxLen, len(p.VehicleNumber))
	}
	if len(p.UserID) != userIDHashLen || !isHex(p.UserID) {
		return fmt.Errorf("%w: userId must be %d hex characters", ErrMalformedPayload, userIDHashLen)
	}
	if p.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp must be positive", ErrMalformedPayload)
	}
	if p.Version != Version {
		return fmt.Errorf("%w: unsupported version %q", ErrMalformedPayload, p.Version)
	}
	if len(sa.Signature) != signatureLen || !strings.HasPrefix(sa.Signature, "0x") || !isHex(sa.Signature[2:]) {
		return fmt.Errorf("%w: signature must be a 0x-prefixed 130-hex string", ErrMalformedPayload)
	}

	return nil
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
