package dto

// AuthSessionRequest carries the gateway's identity assertion.
type AuthSessionRequest struct {
	Subject   string `json:"subject"`
	IssuedAt  int64  `json:"issued_at"`
	Signature string `json:"signature"`
}

type CreateVehicleRequest struct {
	PlateNumber string `json:"plate_number"`
	VehicleType string `json:"vehicle_type"` // free text, e.g. "Car"
}

type IssuePassRequest struct {
	VehicleID string `json:"vehicle_id"`
	RateHint  string `json:"rate_hint,omitempty"` // ставка с табло, перекрывает таблицу
}

type ScanRequest struct {
	Content string   `json:"content"`
	BoothID string   `json:"booth_id"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// HardwareScanRequest — пакет от придорожной будки: QR, а если камера
// не разобрала код, хотя бы номерной знак.
type HardwareScanRequest struct {
	Content     string   `json:"content,omitempty"`
	PlateNumber string   `json:"plate_number,omitempty"`
	BoothID     string   `json:"booth_id"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

type SetDisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}
