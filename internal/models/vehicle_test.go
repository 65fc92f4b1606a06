package models

import "testing"

func TestVehicleClassForType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Direct codes
		{"2W", VehicleClass2W},
		{"2w", VehicleClass2W},
		{"4W", VehicleClass4W},
		{"LCV", VehicleClassLCV},
		{"hcv", VehicleClassHCV},
		{"BUS", VehicleClassBUS},

		// Free-text types
		{"Motorcycle", VehicleClass2W},
		{"scooter", VehicleClass2W},
		{"Car", VehicleClass4W},
		{"SUV", VehicleClass4W},
		{"  van  ", VehicleClass4W},
		{"Pickup", VehicleClassLCV},
		{"Light Commercial Vehicle", VehicleClassLCV},
		{"Truck", VehicleClassHCV},
		{"LORRY", VehicleClassHCV},
		{"Minibus", VehicleClassBUS},

		// Unknown -> default
		{"Hovercraft", DefaultVehicleClass},
		{"", DefaultVehicleClass},
		{"XX", DefaultVehicleClass},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := VehicleClassForType(tt.input)
			if result != tt.expected {
				t.Errorf("VehicleClassForType(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsValidVehicleClass(t *testing.T) {
	for _, class := range AllVehicleClasses() {
		if !IsValidVehicleClass(class) {
			t.Errorf("class %q should be valid", class)
		}
	}

	for _, class := range []string{"XX", "2w", "", "CAR", "4W "} {
		if IsValidVehicleClass(class) {
			t.Errorf("class %q should be invalid", class)
		}
	}
}

func TestIsValidPlateNumber(t *testing.T) {
	tests := []struct {
		plate    string
		expected bool
	}{
		{"MH12AB1234", true},        // 10 chars, lower bound
		{"KA01ABC12345678", true},   // 15 chars, upper bound
		{"DL8CAF5031X", true},       // 11 chars
		{"SHORT", false},            // 5 chars
		{"MH12AB123", false},        // 9 chars
		{"KA01ABC123456789", false}, // 16 chars
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.plate, func(t *testing.T) {
			if got := IsValidPlateNumber(tt.plate); got != tt.expected {
				t.Errorf("IsValidPlateNumber(%q) = %v, want %v", tt.plate, got, tt.expected)
			}
		})
	}
}
