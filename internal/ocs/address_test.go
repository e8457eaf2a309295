package ocs

import "testing"

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input        string
		wantRoot     string
		wantInstance string
		wantErr      bool
	}{
		{"observatory.thermo-1", "observatory", "thermo-1", false},
		{"lab.site.pdu-rack3", "lab.site", "pdu-rack3", false},
		{"  observatory.acu1  ", "observatory", "acu1", false},
		{"noseparator", "", "", true},
		{".leading", "", "", true},
		{"trailing.", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAddress(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAddress(%q) expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAddress(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got.Root != tt.wantRoot || got.Instance != tt.wantInstance {
			t.Errorf("ParseAddress(%q) = %v, want {%s %s}", tt.input, got, tt.wantRoot, tt.wantInstance)
		}
	}
}

func TestOpURI(t *testing.T) {
	a := MustAddress("observatory.thermo-1")
	if got, want := a.OpURI("acq"), "observatory.thermo-1.ops.acq"; got != want {
		t.Errorf("OpURI = %q, want %q", got, want)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	a := MustAddress("lab.site.pdu-rack3")
	b, err := ParseAddress(a.String())
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if a != b {
		t.Errorf("round trip changed address: %v != %v", a, b)
	}
}

func TestDispatchError(t *testing.T) {
	if Dispatch("run", MustAddress("a.b"), "acq", nil) != nil {
		t.Error("Dispatch with nil error should be nil")
	}

	err := Dispatch("run", MustAddress("observatory.pdu1"), "set_outlet", ErrNotConnected)
	de, ok := err.(*DispatchError)
	if !ok {
		t.Fatalf("expected *DispatchError, got %T", err)
	}
	if de.Unwrap() != ErrNotConnected {
		t.Errorf("Unwrap = %v, want ErrNotConnected", de.Unwrap())
	}
}
