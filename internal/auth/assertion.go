package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	// DefaultAssertionTTL — максимальный возраст issued_at в assertion.
	// Шлюз выпускает новую при каждом входе, 5 минут достаточно.
	DefaultAssertionTTL = 5 * time.Minute
)

// ValidateIdentityAssertion verifies a signed identity assertion from the
// anonymizing gateway. The gateway never forwards personal data, only an
// opaque subject plus
//
//	signature = hex(HMAC-SHA256(secret, subject + "\n" + issued_at))
//
// maxAge — максимально допустимый возраст issued_at. Если <= 0,
// используется DefaultAssertionTTL.
func ValidateIdentityAssertion(subject string, issuedAt int64, signature, secret string, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = DefaultAssertionTTL
	}
	if subject == "" {
		return fmt.Errorf("subject is missing from assertion")
	}
	if signature == "" {
		return fmt.Errorf("signature is missing from assertion")
	}

	// ---- Проверяем issued_at (свежесть) ----
	issued := time.Unix(issuedAt, 0)
	if time.Since(issued) > maxAge {
		return fmt.Errorf("assertion expired: issued_at is %s old (max %s)", time.Since(issued).Round(time.Second), maxAge)
	}
	// Защита от issued_at из будущего (clock skew макс. 1 мин)
	if issued.After(time.Now().Add(1 * time.Minute)) {
		return fmt.Errorf("issued_at is in the future")
	}

	// ---- Проверяем HMAC-SHA256 подпись ----
	payload := subject + "\n" + strconv.FormatInt(issuedAt, 10)
	want := hmacSHA256([]byte(secret), []byte(payload))

	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signature is not hex")
	}
	if !hmac.Equal(got, want) {
		return fmt.Errorf("invalid signature: assertion integrity check failed")
	}
	return nil
}

// SignIdentityAssertion выпускает подпись в формате шлюза. Нужна
// интеграционным стендам и тестам.
func SignIdentityAssertion(subject string, issuedAt int64, secret string) string {
	payload := subject + "\n" + strconv.FormatInt(issuedAt, 10)
	return hex.EncodeToString(hmacSHA256([]byte(secret), []byte(payload)))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
