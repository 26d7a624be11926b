package searchdata

import "testing"

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"isWritable", "iswritable"},
		{"indexError_", "indexerror_5f"},
		{"~Array", "_7earray"},
		{"operator()", "operator_28_29"},
		{"Int64", "int64"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := EncodeKey(tt.label); got != tt.want {
			t.Errorf("EncodeKey(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key        string
		wantBase   string
		wantSerial int
		wantOK     bool
	}{
		{"iswritable_3955", "iswritable", 3955, true},
		{"writeerror_5f_9256", "writeerror_5f", 9256, true},
		{"_7earray_12", "_7earray", 12, true},
		{"noserial", "noserial", 0, false},
		{"trailing_", "trailing_", 0, false},
		{"hex_5f", "hex_5f", 0, false},
	}

	for _, tt := range tests {
		base, serial, ok := SplitKey(tt.key)
		if base != tt.wantBase || serial != tt.wantSerial || ok != tt.wantOK {
			t.Errorf("SplitKey(%q) = (%q, %d, %v), want (%q, %d, %v)",
				tt.key, base, serial, ok, tt.wantBase, tt.wantSerial, tt.wantOK)
		}
	}
}

func TestDecodeKey(t *testing.T) {
	if got := DecodeKey("writeerror_5f"); got != "writeerror_" {
		t.Errorf("DecodeKey = %q", got)
	}
	if got := DecodeKey("operator_28_29"); got != "operator()" {
		t.Errorf("DecodeKey = %q", got)
	}
	// A lone underscore without two hex digits is kept as is.
	if got := DecodeKey("a_z"); got != "a_z" {
		t.Errorf("DecodeKey = %q", got)
	}
}

func TestKeyMatchesLabel(t *testing.T) {
	if !KeyMatchesLabel("writeerror_5f_9256", "writeError_") {
		t.Error("expected key to match label")
	}
	if !KeyMatchesLabel("iswritable", "isWritable") {
		t.Error("keys without serial should match")
	}
	if KeyMatchesLabel("iswritable_3955", "isReadable") {
		t.Error("unexpected match")
	}
}
