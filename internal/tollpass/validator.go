package tollpass

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verdict is a validation outcome. PayloadHash is the canonical digest
// replay trackers key on; it is set whenever the payload had a canonical
// form, including on rejections past the structural gate.
type Verdict struct {
	Valid       bool
	Reason      string
	Err         error
	PayloadHash string
}

// Validator re-verifies signed authorizations on the scanner/admin side.
// It holds no state and performs no I/O: validating the same input twice
// yields the same verdict.
type Validator struct {
	maxAge time.Duration
}

func NewValidator(maxAge time.Duration) *Validator {
	if maxAge <= 0 {
		maxAge = MaxAuthorizationAge
	}
	return &Validator{maxAge: maxAge}
}

// Validate runs the hard gates in order: structure, freshness, class,
// signature. The first failed gate decides the verdict; later gates do
// not run.
//
// Порядок важен: вся криптография выполняется только после дешёвых
// structural/temporal проверок.
func (v *Validator) Validate(sa SignedAuthorization) Verdict {
	// 1. Structure: same rules as the codec, re-checked because callers
	// may construct authorizations without going through Decode.
	if err := checkStructure(sa); err != nil {
		return Verdict{Reason: ReasonMalformedPayload, Err: err}
	}

	hash := HashHex(sa.Payload)

	// 2. Freshness: timestamp must lie within [now-maxAge, now].
	// Future timestamps are rejected, not clamped.
	age := time.Since(time.Unix(sa.Payload.Timestamp, 0))
	if age < 0 {
		return Verdict{
			Reason:      ReasonExpiredAuthorization,
			PayloadHash: hash,
			Err:         fmt.Errorf("%w: timestamp is in the future", ErrExpiredAuthorization),
		}
	}
	if age > v.maxAge {
		return Verdict{
			Reason:      ReasonExpiredAuthorization,
			PayloadHash: hash,
			Err: fmt.Errorf("%w: %s old (max %s)",
				ErrExpiredAuthorization, age.Round(time.Second), v.maxAge),
		}
	}

	// 3. Class membership.
	if !models.IsValidVehicleClass(sa.Payload.VehicleType) {
		return Verdict{
			Reason:      ReasonUnknownVehicleClass,
			PayloadHash: hash,
			Err:         fmt.Errorf("%w: %q", ErrUnknownVehicleClass, sa.Payload.VehicleType),
		}
	}

	// 4. Signature: recover the signing address and compare it with the
	// payload's wallet address, case-insensitive.
	if sa.Signature == PlaceholderSignature {
		return Verdict{
			Reason:      ReasonSignatureFormat,
			PayloadHash: hash,
			Err:         fmt.Errorf("%w: placeholder signature", ErrSignatureFormat),
		}
	}

	sig, err := decodeSignature(sa.Signature)
	if err != nil {
		return Verdict{Reason: ReasonSignatureFormat, PayloadHash: hash, Err: err}
	}

	digest := Digest(sa.Payload)
	pub, err := crypto.SigToPub(accounts.TextHash(digest[:]), sig)
	if err != nil {
		return Verdict{
			Reason:      ReasonSignatureFormat,
			PayloadHash: hash,
			Err:         fmt.Errorf("%w: recover public key: %v", ErrSignatureFormat, err),
		}
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), sa.Payload.WalletAddress) {
		return Verdict{
			Reason:      ReasonSignatureMismatch,
			PayloadHash: hash,
			Err: fmt.Errorf("%w: recovered %s, payload %s",
				ErrSignatureMismatch, recovered.Hex(), sa.Payload.WalletAddress),
		}
	}

	return Verdict{Valid: true, PayloadHash: hash}
}

// decodeSignature parses 0x-hex into [R || S || V] with V normalized to
// {0, 1} for recovery. V outside {0, 1, 27, 28} is a format error.
func decodeSignature(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureFormat, err)
	}
	if len(raw) != 65 {
		return nil, fmt.Errorf("%w: %d bytes, want 65", ErrSignatureFormat, len(raw))
	}
	if raw[64] == 27 || raw[64] == 28 {
		raw[64] -= 27
	}
	if raw[64] > 1 {
		return nil, fmt.Errorf("%w: invalid recovery id %d", ErrSignatureFormat, raw[64])
	}
	return raw, nil
}
