package tollpass

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestValidate_AcceptsFreshAuthorization(t *testing.T) {
	signed := newSignedAuthorization(t, time.Now().Unix())
	v := NewValidator(0)

	verdict := v.Validate(signed)
	if !verdict.Valid {
		t.Fatalf("verdict not valid: reason=%s err=%v", verdict.Reason, verdict.Err)
	}
	if verdict.Reason != "" {
		t.Errorf("Reason = %q, want empty", verdict.Reason)
	}
	if verdict.Err != nil {
		t.Errorf("Err = %v, want nil", verdict.Err)
	}
	if want := HashHex(signed.Payload); verdict.PayloadHash != want {
		t.Errorf("PayloadHash = %q, want %q", verdict.PayloadHash, want)
	}
}

func TestValidate_ExpiryWindow(t *testing.T) {
	v := NewValidator(0)

	tests := []struct {
		name      string
		offset    int64 // seconds relative to now
		wantValid bool
	}{
		{"just inside window", -299, true},
		{"just outside window", -301, false},
		{"future timestamp", +10, false},
		{"far past", -3600, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed := newSignedAuthorization(t, time.Now().Unix()+tt.offset)
			verdict := v.Validate(signed)
			if verdict.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (reason=%s err=%v)",
					verdict.Valid, tt.wantValid, verdict.Reason, verdict.Err)
			}
			if !tt.wantValid {
				if verdict.Reason != ReasonExpiredAuthorization {
					t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonExpiredAuthorization)
				}
				if verdict.PayloadHash == "" {
					t.Error("expired verdict must still carry the payload hash")
				}
			}
		})
	}
}

func TestValidate_CustomWindow(t *testing.T) {
	v := NewValidator(10 * time.Second)

	fresh := newSignedAuthorization(t, time.Now().Unix()-5)
	if verdict := v.Validate(fresh); !verdict.Valid {
		t.Errorf("5s-old payload rejected under 10s window: %s", verdict.Reason)
	}

	old := newSignedAuthorization(t, time.Now().Unix()-15)
	if verdict := v.Validate(old); verdict.Valid {
		t.Error("15s-old payload accepted under 10s window")
	}
}

func TestValidate_TamperedPayload(t *testing.T) {
	// Любая правка после подписи ломает восстановление адреса.
	v := NewValidator(0)

	tests := []struct {
		name   string
		mutate func(s *SignedAuthorization)
	}{
		{"plate digit", func(s *SignedAuthorization) { s.Payload.VehicleNumber = "MH12AB1235" }},
		{"vehicle class", func(s *SignedAuthorization) { s.Payload.VehicleType = "2W" }},
		{"user id", func(s *SignedAuthorization) { s.Payload.UserID = IdentityHash("rider-2") }},
		{"timestamp", func(s *SignedAuthorization) { s.Payload.Timestamp++ }},
		{"wallet address", func(s *SignedAuthorization) {
			s.Payload.WalletAddress = "0x52908400098527886E0F7030069857D2E4169EE7"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed := newSignedAuthorization(t, time.Now().Unix())
			tt.mutate(&signed)

			verdict := v.Validate(signed)
			if verdict.Valid {
				t.Fatal("tampered payload accepted")
			}
			if verdict.Reason != ReasonSignatureMismatch {
				t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonSignatureMismatch)
			}
		})
	}
}

func TestValidate_TamperedSignature(t *testing.T) {
	v := NewValidator(0)
	signed := newSignedAuthorization(t, time.Now().Unix())

	// Меняем один hex-символ внутри R.
	raw := []byte(signed.Signature)
	pos := 10
	if raw[pos] == 'a' {
		raw[pos] = 'b'
	} else {
		raw[pos] = 'a'
	}
	signed.Signature = string(raw)

	verdict := v.Validate(signed)
	if verdict.Valid {
		t.Fatal("tampered signature accepted")
	}
	if verdict.Reason != ReasonSignatureMismatch && verdict.Reason != ReasonSignatureFormat {
		t.Errorf("Reason = %q, want signature rejection", verdict.Reason)
	}
}

func TestValidate_RecoveryID(t *testing.T) {
	v := NewValidator(0)
	signed := newSignedAuthorization(t, time.Now().Unix())

	sig, err := hex.DecodeString(strings.TrimPrefix(signed.Signature, "0x"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	// Старая форма recovery id (0/1) тоже принимается.
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	legacy[64] -= 27
	signed.Signature = "0x" + hex.EncodeToString(legacy)
	if verdict := v.Validate(signed); !verdict.Valid {
		t.Errorf("legacy recovery id rejected: reason=%s err=%v", verdict.Reason, verdict.Err)
	}

	for _, bad := range []byte{2, 26, 29, 255} {
		broken := make([]byte, len(sig))
		copy(broken, sig)
		broken[64] = bad
		signed.Signature = "0x" + hex.EncodeToString(broken)

		verdict := v.Validate(signed)
		if verdict.Valid {
			t.Fatalf("recovery id %d accepted", bad)
		}
		if verdict.Reason != ReasonSignatureFormat {
			t.Errorf("recovery id %d: Reason = %q, want %q", bad, verdict.Reason, ReasonSignatureFormat)
		}
	}
}

func TestValidate_UnknownClassBeatsValidSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := NewLocalSigner(key)

	// Подпись честная, но класс вне справочника.
	p := AuthorizationPayload{
		WalletAddress: signer.Address(),
		VehicleNumber: "MH12AB1234",
		VehicleType:   "XX",
		UserID:        IdentityHash("rider-1"),
		Timestamp:     time.Now().Unix(),
		Version:       Version,
	}
	signed, err := Sign(p, signer)
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}

	verdict := NewValidator(0).Validate(signed)
	if verdict.Valid {
		t.Fatal("unknown vehicle class accepted")
	}
	if verdict.Reason != ReasonUnknownVehicleClass {
		t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonUnknownVehicleClass)
	}
}

func TestValidate_PlaceholderSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := NewLocalSigner(key)

	p := AuthorizationPayload{
		WalletAddress: signer.Address(),
		VehicleNumber: "MH12AB1234",
		VehicleType:   "4W",
		UserID:        IdentityHash("rider-1"),
		Timestamp:     time.Now().Unix(),
		Version:       Version,
	}

	verdict := NewValidator(0).Validate(SignPlaceholder(p))
	if verdict.Valid {
		t.Fatal("placeholder signature accepted")
	}
	if verdict.Reason != ReasonSignatureFormat {
		t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonSignatureFormat)
	}
}

func TestValidate_MalformedPayload(t *testing.T) {
	signed := newSignedAuthorization(t, time.Now().Unix())
	signed.Payload.WalletAddress = ""

	verdict := NewValidator(0).Validate(signed)
	if verdict.Valid {
		t.Fatal("malformed payload accepted")
	}
	if verdict.Reason != ReasonMalformedPayload {
		t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonMalformedPayload)
	}
	if verdict.PayloadHash != "" {
		t.Errorf("PayloadHash = %q, want empty for malformed payload", verdict.PayloadHash)
	}
}

func TestValidate_CaseInsensitiveAddressCompare(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := NewLocalSigner(key)

	p := AuthorizationPayload{
		WalletAddress: strings.ToLower(signer.Address()),
		VehicleNumber: "MH12AB1234",
		VehicleType:   "4W",
		UserID:        IdentityHash("rider-1"),
		Timestamp:     time.Now().Unix(),
		Version:       Version,
	}
	signed, err := Sign(p, signer)
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}

	if verdict := NewValidator(0).Validate(signed); !verdict.Valid {
		t.Errorf("lowercase wallet address rejected: reason=%s err=%v", verdict.Reason, verdict.Err)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	v := NewValidator(0)
	signed := newSignedAuthorization(t, time.Now().Unix())

	first := v.Validate(signed)
	second := v.Validate(signed)
	if first != second {
		t.Errorf("verdicts differ across calls:\n first  %+v\n second %+v", first, second)
	}
}
