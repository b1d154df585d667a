package tracker

import "testing"

func TestCapabilityForCode(t *testing.T) {
	tests := []struct {
		code   CapabilityCode
		want   string
		wantOK bool
	}{
		{CodeBuzzer, CapBuzzerControl, true},
		{CodeLED, CapLEDControl, true},
		{CodeLiveTracking, CapLiveTracking, true},
		{CapabilityCode("UNKNOWN_TAG"), "", false},
	}

	for _, tt := range tests {
		got, ok := CapabilityForCode(tt.code)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("CapabilityForCode(%q) = (%q, %v), want (%q, %v)", tt.code, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCapabilitiesForCodes_SkipsUnknown(t *testing.T) {
	caps := CapabilitiesForCodes([]CapabilityCode{CodeBuzzer, "MYSTERY", CodeLED})

	if len(caps) != 2 {
		t.Fatalf("got %d capabilities, want 2: %v", len(caps), caps)
	}
	if caps[0] != CapBuzzerControl || caps[1] != CapLEDControl {
		t.Errorf("caps = %v, want [buzzer_control led_control]", caps)
	}
}

func TestBaseCapabilities_ExcludeOptional(t *testing.T) {
	optional := map[string]bool{}
	for _, cap := range OptionalCapabilities() {
		optional[cap] = true
	}

	for _, cap := range BaseCapabilities() {
		if optional[cap] {
			t.Errorf("base capability %q is also code-driven", cap)
		}
	}
}

func TestProductName(t *testing.T) {
	tests := []struct {
		model   string
		edition string
		want    string
	}{
		{"TRAXC", "CAT", "PawLink GPS Cat"},
		{"TRAXA", "", "PawLink GPS"},
		{"TRAXA", "MINI", "PawLink GPS Mini"},
		{"TRAXS", "NOSUCH", "PawLink GPS S"}, // falls back to bare model
		{"TRAXZ", "", UnknownProduct},
		{"", "", UnknownProduct},
	}

	for _, tt := range tests {
		if got := ProductName(tt.model, tt.edition); got != tt.want {
			t.Errorf("ProductName(%q, %q) = %q, want %q", tt.model, tt.edition, got, tt.want)
		}
	}
}

func TestIsTerminalReason(t *testing.T) {
	if !IsTerminalReason(ReasonOutOfBattery) {
		t.Error("out_of_battery should be terminal")
	}
	if !IsTerminalReason(ReasonShutdownByUser) {
		t.Error("shutdown_by_user should be terminal")
	}
	if IsTerminalReason(ReasonPowerSaving) {
		t.Error("power_saving is not a warning reason")
	}
}
