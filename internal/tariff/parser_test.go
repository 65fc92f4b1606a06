package tariff

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

// срез реальной страницы плазы: заголовок, сноски, суммы с валютой
const schedulePage = `
<html><body>
<h1>Toll Plaza 214 — Effective Rates</h1>
<table class="rates">
  <tr><th>Vehicle Category</th><th>Single Journey</th><th>Return Journey</th></tr>
  <tr><td>Car / Jeep / Van</td><td>0.001 POL</td><td>0.0015 POL</td></tr>
  <tr><td>LCV</td><td>0.0015 POL</td><td>0.0022 POL</td></tr>
  <tr><td>Bus</td><td>0.002 POL</td><td>0.003 POL</td></tr>
  <tr><td>Truck (Multi Axle)</td><td>0.0025 POL</td><td>0.0037 POL</td></tr>
  <tr><td>Two Wheeler</td><td>0.0005 POL</td><td>0.0007 POL</td></tr>
  <tr><td>Overloaded*</td><td>see note</td><td>—</td></tr>
</table>
<p>* Overloaded vehicles are charged at the next higher category.</p>
</body></html>`

func TestRatesFromDocument(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(schedulePage))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	rates := ratesFromDocument(doc)

	expected := map[string]string{
		models.VehicleClass4W:  "0.001",
		models.VehicleClassLCV: "0.0015",
		models.VehicleClassBUS: "0.002",
		models.VehicleClassHCV: "0.0025",
		models.VehicleClass2W:  "0.0005",
	}
	if len(rates) != len(expected) {
		t.Fatalf("got %d classes %v, want %d", len(rates), rates, len(expected))
	}
	for class, want := range expected {
		if rates[class] != want {
			t.Errorf("rate for %s = %q, want %q", class, rates[class], want)
		}
	}
}

func TestRatesFromDocument_DuplicateRowsKeepFirst(t *testing.T) {
	const page = `<table>
	  <tr><td>Car</td><td>0.001</td></tr>
	  <tr><td>Sedan</td><td>0.009</td></tr>
	</table>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	rates := ratesFromDocument(doc)
	if rates[models.VehicleClass4W] != "0.001" {
		t.Errorf("rate for 4W = %q, want first row 0.001", rates[models.VehicleClass4W])
	}
}

func TestRatesFromDocument_NothingRecognized(t *testing.T) {
	const page = `<table>
	  <tr><td>Helicopter</td><td>0.5</td></tr>
	  <tr><td>Pedestrian</td><td>free</td></tr>
	</table>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	if rates := ratesFromDocument(doc); len(rates) != 0 {
		t.Errorf("expected no rates, got %v", rates)
	}
}

func TestClassForLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"Car / Jeep / Van", models.VehicleClass4W, true},
		{"hcv", models.VehicleClassHCV, true},
		{"Truck (Multi Axle)", models.VehicleClassHCV, true},
		{"Two Wheeler", models.VehicleClass2W, true},
		{"BUS", models.VehicleClassBUS, true},
		{"Vehicle Category", "", false},
		{"Overloaded*", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			class, ok := classForLabel(tt.input)
			if ok != tt.ok || class != tt.expected {
				t.Errorf("classForLabel(%q) = (%q, %v), want (%q, %v)", tt.input, class, ok, tt.expected, tt.ok)
			}
		})
	}
}
