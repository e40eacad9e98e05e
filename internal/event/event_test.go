package event

import "testing"

func TestParseType(t *testing.T) {
	cases := []struct {
		message string
		want    Type
	}{
		{"Communication Offline", TypeCommunicationOffline},
		{"Low Cash alert", TypeLowCashAlert},
		{"empty", TypeEmpty},
		{"Paper-out condition", TypePaperOutCondition},
		{"Connection failure", TypeConnectionFailure},
		// case-sensitive
		{"low cash alert", TypeUnrecognized},
		{"Heartbeat", TypeUnrecognized},
		{"", TypeUnrecognized},
		{"Printer error ", TypeUnrecognized},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			if got := ParseType(tc.message); got != tc.want {
				t.Errorf("ParseType(%q) = %v, want %v", tc.message, got, tc.want)
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.Valid() {
			t.Errorf("%v should be valid", typ)
		}
		if typ.String() == "" {
			t.Errorf("type %d has no name", typ)
		}
	}
	for code := int(TypeConnectionFailure) + 1; code <= 255; code++ {
		if Type(code).Valid() {
			t.Errorf("code %d should be invalid", code)
		}
	}
	if got := TypeUnrecognized.String(); got != "Unrecognized" {
		t.Errorf("sentinel name = %q", got)
	}
	if got := Type(42).String(); got != "Unknown(42)" {
		t.Errorf("unknown name = %q", got)
	}
}

func TestNamesRoundTrip(t *testing.T) {
	for _, typ := range Types() {
		if typ == TypeHeartbeat {
			continue
		}
		if got := ParseType(typ.String()); got != typ {
			t.Errorf("ParseType(%q) = %v, want %v", typ.String(), got, typ)
		}
	}
}
