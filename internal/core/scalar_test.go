package core

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestScalarEqualAndString(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Scalar
		wantEqual bool
		wantStr   string
	}{
		{"same number", NumberValue(1200), NumberValue(1200), true, "1200"},
		{"fractional number", NumberValue(45.5), NumberValue(45.5), true, "45.5"},
		{"different numbers", NumberValue(1), NumberValue(2), false, "1"},
		{"number vs string", NumberValue(1), StringValue("1"), false, "1"},
		{"strings", StringValue("UK"), StringValue("UK"), true, "UK"},
		{"bools", BoolValue(true), BoolValue(true), true, "true"},
		{"zero values", Scalar{}, Scalar{}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.wantEqual {
				t.Errorf("Equal() = %v, want %v", got, tt.wantEqual)
			}
			if got := tt.a.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestExtraDataKeepsInsertionOrder(t *testing.T) {
	var e ExtraData
	e.Set("zeta", StringValue("z"))
	e.Set("alpha", NumberValue(1))
	e.Set("mid", BoolValue(false))
	e.Set("zeta", StringValue("updated"))

	if got, want := e.Keys(), []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"zeta":"updated","alpha":1,"mid":false}`; string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}
}

func TestExtraDataUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKeys []string
		wantErr  bool
	}{
		{"document order kept", `{"b":1,"a":"x","c":true}`, []string{"b", "a", "c"}, false},
		{"null members skipped", `{"a":null,"b":2}`, []string{"b"}, false},
		{"null document", `null`, []string{}, false},
		{"nested object rejected", `{"a":{"b":1}}`, nil, true},
		{"array rejected", `{"a":[1,2]}`, nil, true},
		{"not an object", `[1]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e ExtraData
			err := json.Unmarshal([]byte(tt.input), &e)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := e.Keys(); !reflect.DeepEqual(got, tt.wantKeys) {
				t.Errorf("Keys() = %v, want %v", got, tt.wantKeys)
			}
		})
	}
}

func TestExtraDataClone(t *testing.T) {
	orig := extra("cpc", 2.5)
	c := orig.Clone()
	c.Set("cpc", NumberValue(9))
	c.Set("intent", StringValue("commercial"))

	if v, _ := orig.Get("cpc"); !v.Equal(NumberValue(2.5)) {
		t.Errorf("original cpc = %v, want 2.5", v)
	}
	if orig.Has("intent") {
		t.Error("original gained key from clone")
	}
}
