package core

import (
	"encoding/json"
	"testing"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"1200", 1200, true},
		{"1,200", 1200, true},
		{"$2.50", 2.5, true},
		{"€1.234", 1.234, true},
		{"£3", 3, true},
		{"45%", 45, true},
		{" 45.5 ", 45.5, true},
		{"(3.5)", -3.5, true},
		{"'-12", -12, true},
		{"1 000", 1000, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"12abc", 0, false},
		{"-", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseNumeric(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseNumeric(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseVolumeRange(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"1K - 10K", 5500, true},
		{"10K-100K", 55000, true},
		{"1M – 10M", 5500000, true},
		{"100 - 1K", 550, true},
		{"250", 250, true},
		{"1.5k", 1500, true},
		{"", 0, false},
		{"   ", 0, false},
		{"1K - lots", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseVolumeRange(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseVolumeRange(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTransformApply(t *testing.T) {
	tests := []struct {
		name   string
		kind   TransformKind
		raw    string
		want   Scalar
		wantOK bool
	}{
		{"identity trims", TransformIdentity, "  seo tips ", StringValue("seo tips"), true},
		{"identity empty is no value", TransformIdentity, "  ", Scalar{}, false},
		{"numeric", TransformNumeric, "$2.50", NumberValue(2.5), true},
		{"numeric garbage is no value", TransformNumeric, "high", Scalar{}, false},
		{"google range", TransformGoogleVolumeRange, "1K - 10K", NumberValue(5500), true},
		{"google empty is no value", TransformGoogleVolumeRange, "", Scalar{}, false},
		{"region code", TransformRegionCode, " uk ", StringValue("UK"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.kind.Apply(tt.raw)
			if ok != tt.wantOK || !got.Equal(tt.want) {
				t.Errorf("Apply(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTransformKindJSON(t *testing.T) {
	b, err := json.Marshal(ColumnMapping{SourceColumn: "kd", TargetField: FieldDifficulty, Transform: TransformNumeric})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"sourceColumn":"kd","targetField":"difficulty","required":false,"transform":"numeric"}`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}

	var k TransformKind
	if err := json.Unmarshal([]byte(`"bogus"`), &k); err == nil {
		t.Error("Unmarshal(bogus) error = nil, want error")
	}
}

func TestTransformForField(t *testing.T) {
	tests := map[string]TransformKind{
		FieldSearchVolume: TransformGoogleVolumeRange,
		FieldDifficulty:   TransformNumeric,
		"cpc":             TransformNumeric,
		FieldRegion:       TransformRegionCode,
		FieldKeyword:      TransformIdentity,
		"intent":          TransformIdentity,
	}
	for field, want := range tests {
		if got := transformForField(field); got != want {
			t.Errorf("transformForField(%q) = %v, want %v", field, got, want)
		}
	}
}
