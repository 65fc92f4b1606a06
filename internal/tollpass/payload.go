package tollpass

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// Version — протокольный тег; валидаторы v1 принимают только v1.
	Version = "v1"

	// MaxAuthorizationAge is the validity window of a signed payload.
	// Also the replay horizon: consumed-hash tracking only needs to
	// remember hashes this long.
	MaxAuthorizationAge = 300 * time.Second
)

// AuthorizationPayload is the canonical record a vehicle owner signs to
// authorize a single toll charge. Field order is the canonical JSON
// order; the struct is never mutated after signing.
type AuthorizationPayload struct {
	WalletAddress string `json:"walletAddress"`
	VehicleNumber string `json:"vehicleNumber"`
	VehicleType   string `json:"vehicleType"` // class code: 2W/4W/LCV/HCV/BUS
	UserID        string `json:"userId"`      // sha256 hex of the session identity
	Timestamp     int64  `json:"timestamp"`   // unix seconds
	Version       string `json:"version"`
}

// SignedAuthorization couples a payload with its owner signature:
// 65 bytes [R || S || V], V in {27, 28}, hex with 0x prefix.
type SignedAuthorization struct {
	Payload   AuthorizationPayload
	Signature string
}

type BuildInput struct {
	WalletAddress string
	VehicleNumber string
	VehicleType   string // free text from the vehicle record, e.g. "Car"
	Identity      string // anonymous session identity, hashed into userId
}

// Build assembles a fresh payload. Pure construction: the free-text
// vehicle type collapses to a class code, the identity is hashed, the
// timestamp is stamped at call time.
func Build(in BuildInput) AuthorizationPayload {
	return AuthorizationPayload{
		WalletAddress: in.WalletAddress,
		VehicleNumber: in.VehicleNumber,
		VehicleType:   models.VehicleClassForType(in.VehicleType),
		UserID:        IdentityHash(in.Identity),
		Timestamp:     time.Now().Unix(),
		Version:       Version,
	}
}

// IdentityHash derives the anonymous owner identifier carried in
// payloads and used as the wallet owner key. Deterministic: the same
// identity always yields the same hash.
func IdentityHash(identity string) string {
	h := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(h[:])
}

// CanonicalJSON is the byte-exact signing input: the six payload fields
// in declaration order, stdlib JSON encoding.
func CanonicalJSON(p AuthorizationPayload) []byte {
	data, _ := json.Marshal(p)
	return data
}

// Digest is keccak256 over the canonical JSON. Signature schemes and
// replay tracking both key on it.
func Digest(p AuthorizationPayload) [32]byte {
	var d [32]byte
	copy(d[:], crypto.Keccak256(CanonicalJSON(p)))
	return d
}

// HashHex returns the 0x-hex digest, the exact replay-tracking key.
func HashHex(p AuthorizationPayload) string {
	d := Digest(p)
	return "0x" + hex.EncodeToString(d[:])
}
