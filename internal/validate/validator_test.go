package validate

import "testing"

type enumProbe struct {
	Sentiment string `validate:"required,sentiment"`
	Topic     string `validate:"omitempty,topic"`
}

func TestCustomValidatorEnums(t *testing.T) {
	v := New()
	tests := []struct {
		probe enumProbe
		ok    bool
	}{
		{probe: enumProbe{Sentiment: "BAD", Topic: "Front Desk"}, ok: true},
		{probe: enumProbe{Sentiment: "Other"}, ok: true},
		{probe: enumProbe{Sentiment: "TERRIBLE", Topic: "Rooms"}, ok: false},
		{probe: enumProbe{Sentiment: "GOOD", Topic: "Parking"}, ok: false},
		{probe: enumProbe{Topic: "Rooms"}, ok: false},
	}
	for _, tt := range tests {
		err := v.Validate(tt.probe)
		if (err == nil) != tt.ok {
			t.Fatalf("Validate(%+v) err=%v, want ok=%v", tt.probe, err, tt.ok)
		}
	}
}
