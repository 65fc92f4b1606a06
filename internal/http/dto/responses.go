package dto

import "github.com/desmond009/TollCrypt-sub002/internal/models"

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// WalletCreatedResponse is the one response that ever carries the
// private key. Сервер копию не хранит нигде, кроме кеша владельца.
type WalletCreatedResponse struct {
	Wallet     *models.WalletRecord `json:"wallet"`
	PrivateKey string               `json:"private_key,omitempty"`
	Created    bool                 `json:"created"`
}

// HardwareScanResponse wraps a scan result with the LED colour the
// booth firmware shows the driver.
type HardwareScanResponse struct {
	Status string `json:"status"` // green / red
	Result any    `json:"result"`
}

type TariffsResponse struct {
	Rates     map[string]string `json:"rates"`
	UpdatedAt string            `json:"updated_at"`
}

type VehicleClassesResponse struct {
	Classes []string `json:"classes"`
}
