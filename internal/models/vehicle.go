package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Vehicle class codes carried in authorization payloads.
const (
	VehicleClass2W  = "2W"
	VehicleClass4W  = "4W"
	VehicleClassLCV = "LCV"
	VehicleClassHCV = "HCV"
	VehicleClassBUS = "BUS"
)

// DefaultVehicleClass is used when a free-text vehicle type matches nothing.
const DefaultVehicleClass = VehicleClass4W

// Free-text vehicle type -> class code. Keys are lowercase.
var vehicleClassByType = map[string]string{
	"2w":                       VehicleClass2W,
	"two wheeler":              VehicleClass2W,
	"two-wheeler":              VehicleClass2W,
	"motorcycle":               VehicleClass2W,
	"bike":                     VehicleClass2W,
	"scooter":                  VehicleClass2W,
	"4w":                       VehicleClass4W,
	"four wheeler":             VehicleClass4W,
	"four-wheeler":             VehicleClass4W,
	"car":                      VehicleClass4W,
	"sedan":                    VehicleClass4W,
	"hatchback":                VehicleClass4W,
	"suv":                      VehicleClass4W,
	"jeep":                     VehicleClass4W,
	"van":                      VehicleClass4W,
	"lcv":                      VehicleClassLCV,
	"light commercial":         VehicleClassLCV,
	"light commercial vehicle": VehicleClassLCV,
	"mini truck":               VehicleClassLCV,
	"pickup":                   VehicleClassLCV,
	"tempo":                    VehicleClassLCV,
	"hcv":                      VehicleClassHCV,
	"heavy commercial":         VehicleClassHCV,
	"heavy commercial vehicle": VehicleClassHCV,
	"truck":                    VehicleClassHCV,
	"lorry":                    VehicleClassHCV,
	"trailer":                  VehicleClassHCV,
	"multi axle":               VehicleClassHCV,
	"bus":                      VehicleClassBUS,
	"minibus":                  VehicleClassBUS,
	"coach":                    VehicleClassBUS,
}

// VehicleClassForType maps a free-text vehicle type to a class code.
// Lookup is case-insensitive; unknown types map to DefaultVehicleClass.
func VehicleClassForType(vehicleType string) string {
	if class, ok := VehicleClassForKnownType(vehicleType); ok {
		return class
	}
	return DefaultVehicleClass
}

// VehicleClassForKnownType resolves only recognized labels, without the
// 4W fallback. Нужна парсеру тарифной страницы: там незнакомая строка
// должна быть пропущена, а не превращена в легковушку.
func VehicleClassForKnownType(vehicleType string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(vehicleType))
	class, ok := vehicleClassByType[key]
	return class, ok
}

func IsValidVehicleClass(class string) bool {
	switch class {
	case VehicleClass2W, VehicleClass4W, VehicleClassLCV, VehicleClassHCV, VehicleClassBUS:
		return true
	}
	return false
}

// AllVehicleClasses returns the class codes in display order.
func AllVehicleClasses() []string {
	return []string{VehicleClass2W, VehicleClass4W, VehicleClassLCV, VehicleClassHCV, VehicleClassBUS}
}

type Vehicle struct {
	ID           uuid.UUID `json:"id"`
	OwnerUserID  uuid.UUID `json:"owner_user_id"`
	PlateNumber  string    `json:"plate_number"`
	VehicleType  string    `json:"vehicle_type"` // free text, e.g. "Car"
	VehicleClass string    `json:"vehicle_class"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	PlateNumberMinLen = 10
	PlateNumberMaxLen = 15
)

func IsValidPlateNumber(plate string) bool {
	n := len(plate)
	return n >= PlateNumberMinLen && n <= PlateNumberMaxLen
}
