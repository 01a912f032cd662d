package address

import "testing"

func TestSplit(t *testing.T) {
	tests := []struct {
		input   string
		locator string
		inner   string
	}{
		{"", "", ""},
		{"file.msi", "file.msi", ""},
		{"file.msi:", "file.msi", ""},
		{"file.msi:Storage/Stream", "file.msi", "Storage/Stream"},
		{"file.msi:/Storage", "file.msi", "/Storage"},
		{":Stream", "", "Stream"},
		{"a:b:c", "a", "b:c"},
	}

	for _, tt := range tests {
		locator, inner := Split(tt.input)
		if locator != tt.locator || inner != tt.inner {
			t.Errorf("Split(%q) = (%q, %q), want (%q, %q)", tt.input, locator, inner, tt.locator, tt.inner)
		}
	}
}
