package tollpass

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// PlaceholderSignature is the reserved all-zero signature emitted in
// demo mode. Validators short-circuit reject it.
var PlaceholderSignature = "0x" + strings.Repeat("0", 130)

// Signer is the only coupling to key material. SignDigest takes the
// 32-byte payload digest and returns a 65-byte recoverable signature
// over its EIP-191 personal-message hash, matching what wallet apps
// produce for personal_sign. Implementations return ErrSigningDeclined
// when the owner refuses.
type Signer interface {
	Address() string
	SignDigest(digest []byte) ([]byte, error)
}

// LocalSigner signs with an in-process key: server-held wallet key
// material and tests.
type LocalSigner struct {
	key *ecdsa.PrivateKey
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

func LocalSignerFromHex(privHex string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &LocalSigner{key: key}, nil
}

func (s *LocalSigner) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

func (s *LocalSigner) SignDigest(digest []byte) ([]byte, error) {
	return crypto.Sign(accounts.TextHash(digest), s.key)
}

// Sign binds a payload to its wallet. The signer's address is checked
// against the payload BEFORE any signing happens, so a key bound to a
// different wallet can never produce a plausible-looking authorization.
func Sign(p AuthorizationPayload, signer Signer) (SignedAuthorization, error) {
	if signer == nil {
		return SignedAuthorization{}, ErrSigningUnavailable
	}
	if !strings.EqualFold(signer.Address(), p.WalletAddress) {
		return SignedAuthorization{}, fmt.Errorf("%w: signer %s, payload %s",
			ErrSigningAddressMismatch, signer.Address(), p.WalletAddress)
	}

	digest := Digest(p)
	sig, err := signer.SignDigest(digest[:])
	if err != nil {
		return SignedAuthorization{}, fmt.Errorf("sign payload digest: %w", err)
	}
	if len(sig) != 65 {
		return SignedAuthorization{}, fmt.Errorf("%w: signer returned %d bytes, want 65", ErrSignatureFormat, len(sig))
	}

	// go-ethereum returns V in {0, 1}; the wire format carries {27, 28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return SignedAuthorization{
		Payload:   p,
		Signature: "0x" + hex.EncodeToString(sig),
	}, nil
}

// SignPlaceholder attaches the reserved placeholder signature for demo
// flows where no key material is reachable.
func SignPlaceholder(p AuthorizationPayload) SignedAuthorization {
	return SignedAuthorization{Payload: p, Signature: PlaceholderSignature}
}
