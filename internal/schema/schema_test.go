package schema

import (
	"testing"

	"github.com/JonMunkholm/kwimport/internal/core"
)

func TestCatalog(t *testing.T) {
	c := Catalog()

	want := []core.ToolSource{core.ToolSemrush, core.ToolAhrefs, core.ToolGoogleKeywordPlanner}
	all := c.All()
	if len(all) != len(want) {
		t.Fatalf("len(All()) = %d, want %d", len(all), len(want))
	}
	for i, s := range all {
		if s.Tool != want[i] {
			t.Errorf("All()[%d].Tool = %q, want %q", i, s.Tool, want[i])
		}
		if len(s.ValueValidators) == 0 {
			t.Errorf("%s has no value validators", s.Tool)
		}
	}
}

func TestSchemasMapEveryOptionalColumn(t *testing.T) {
	for _, s := range []core.ToolSchema{Semrush, Ahrefs, GoogleKeywordPlanner} {
		t.Run(string(s.Tool), func(t *testing.T) {
			mapped := make(map[string]bool)
			for _, cm := range s.ColumnMappings {
				mapped[cm.SourceColumn] = true
			}
			for _, col := range append(append([]string{}, s.RequiredColumns...), s.OptionalColumns...) {
				if !mapped[col] {
					t.Errorf("column %q has no mapping", col)
				}
			}
		})
	}
}

func TestDetect(t *testing.T) {
	d := core.NewDetector(Catalog())

	tests := []struct {
		name     string
		headers  []string
		wantTool core.ToolSource
		minConf  float64
	}{
		{
			name:     "semrush short export",
			headers:  []string{"keyword", "search volume", "kd", "cpc"},
			wantTool: core.ToolSemrush,
			minConf:  0.5,
		},
		{
			name:     "semrush keyword magic tool",
			headers:  []string{"Keyword", "Intent", "Volume", "Trend", "Keyword Difficulty", "CPC (USD)", "Competitive Density", "SERP Features", "Number of Results"},
			wantTool: core.ToolSemrush,
			minConf:  0.7,
		},
		{
			name:     "ahrefs keywords explorer",
			headers:  []string{"Keyword", "Country", "Difficulty", "Volume", "CPC", "CPS", "Parent Topic", "Traffic potential", "Global volume"},
			wantTool: core.ToolAhrefs,
			minConf:  0.9,
		},
		{
			name:     "google keyword planner",
			headers:  []string{"Keyword", "Currency", "Avg. monthly searches", "Three month change", "YoY change", "Competition", "Competition (indexed value)", "Top of page bid (low range)", "Top of page bid (high range)"},
			wantTool: core.ToolGoogleKeywordPlanner,
			minConf:  0.9,
		},
		{
			name:     "no keyword column",
			headers:  []string{"term", "volume"},
			wantTool: core.ToolUnknown,
		},
		{
			name:     "keyword only",
			headers:  []string{"keyword", "notes"},
			wantTool: core.ToolUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.headers)
			if got.DetectedTool != tt.wantTool {
				t.Fatalf("DetectedTool = %q (confidence %v), want %q", got.DetectedTool, got.Confidence, tt.wantTool)
			}
			if tt.wantTool == core.ToolUnknown {
				if len(got.Errors) != 1 || got.Errors[0].Type != core.MappingErrMissingRequired {
					t.Errorf("Errors = %+v, want one missing_required error", got.Errors)
				}
				return
			}
			if got.Confidence < tt.minConf {
				t.Errorf("Confidence = %v, want >= %v", got.Confidence, tt.minConf)
			}
			if !got.Usable() {
				t.Errorf("Usable() = false, want true (errors %+v)", got.Errors)
			}

			again := d.Detect(tt.headers)
			if again.DetectedTool != got.DetectedTool || again.Confidence != got.Confidence {
				t.Errorf("second Detect() = (%q, %v), want (%q, %v)", again.DetectedTool, again.Confidence, got.DetectedTool, got.Confidence)
			}
		})
	}
}

func TestSemrushRowMapping(t *testing.T) {
	d := core.NewDetector(Catalog())
	res := d.Detect([]string{"keyword", "search volume", "kd", "cpc"})

	row := core.RawRow{"keyword": "seo tips", "search volume": "1,200", "kd": "45.5", "cpc": "$2.50"}
	mk, ok := core.NewRowMapper(res.Validators).MapRow(row, res.Mappings)
	if !ok {
		t.Fatal("MapRow() ok = false, want true")
	}

	if mk.Keyword != "seo tips" {
		t.Errorf("Keyword = %q, want %q", mk.Keyword, "seo tips")
	}
	if mk.SearchVolume == nil || *mk.SearchVolume != 1200 {
		t.Errorf("SearchVolume = %v, want 1200", mk.SearchVolume)
	}
	if mk.Difficulty == nil || *mk.Difficulty != 45.5 {
		t.Errorf("Difficulty = %v, want 45.5", mk.Difficulty)
	}
	if keys := mk.ExtraData.Keys(); len(keys) != 1 || keys[0] != "cpc" {
		t.Errorf("ExtraData keys = %v, want [cpc]", keys)
	}
	if cpc, _ := mk.ExtraData.Get("cpc"); !cpc.Equal(core.NumberValue(2.5)) {
		t.Errorf("cpc = %v, want 2.5", cpc)
	}
}

func TestGoogleRowMapping(t *testing.T) {
	d := core.NewDetector(Catalog())
	res, err := d.MappingFor(core.ToolGoogleKeywordPlanner, []string{"Keyword", "Avg. monthly searches", "Competition", "Competition (indexed value)", "Top of page bid (low range)"})
	if err != nil {
		t.Fatalf("MappingFor() error = %v", err)
	}
	if res.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", res.Confidence)
	}

	row := core.RawRow{
		"Keyword":                     "running shoes",
		"Avg. monthly searches":       "1K - 10K",
		"Competition":                 "High",
		"Competition (indexed value)": "87",
		"Top of page bid (low range)": "0.45",
	}
	mk, ok := core.NewRowMapper(res.Validators).MapRow(row, res.Mappings)
	if !ok {
		t.Fatal("MapRow() ok = false, want true")
	}
	if mk.SearchVolume == nil || *mk.SearchVolume != 5500 {
		t.Errorf("SearchVolume = %v, want 5500", mk.SearchVolume)
	}
	if mk.Difficulty == nil || *mk.Difficulty != 87 {
		t.Errorf("Difficulty = %v, want 87", mk.Difficulty)
	}
	if v, _ := mk.ExtraData.GetString("competition"); v != "High" {
		t.Errorf("competition = %q, want %q", v, "High")
	}
	if v, _ := mk.ExtraData.Get("bidLow"); !v.Equal(core.NumberValue(0.45)) {
		t.Errorf("bidLow = %v, want 0.45", v)
	}
}

func TestAhrefsCountryMapsToRegion(t *testing.T) {
	d := core.NewDetector(Catalog())
	res, err := d.MappingFor(core.ToolAhrefs, []string{"Keyword", "Country", "Volume"})
	if err != nil {
		t.Fatalf("MappingFor() error = %v", err)
	}

	mk, ok := core.NewRowMapper(res.Validators).MapRow(core.RawRow{"Keyword": "crm", "Country": " gb ", "Volume": "900"}, res.Mappings)
	if !ok {
		t.Fatal("MapRow() ok = false, want true")
	}
	if mk.Region != "GB" {
		t.Errorf("Region = %q, want %q", mk.Region, "GB")
	}
	if mk.ExtraData.Len() != 0 {
		t.Errorf("ExtraData = %v, want empty", mk.ExtraData.Keys())
	}
}

func TestSchemasDeclareValidators(t *testing.T) {
	for _, s := range []core.ToolSchema{Semrush, Ahrefs, GoogleKeywordPlanner} {
		t.Run(string(s.Tool), func(t *testing.T) {
			want := map[string]core.Validator{
				core.FieldKeyword:      core.ValidateNonEmptyText,
				core.FieldSearchVolume: core.ValidateNonNegative,
				core.FieldDifficulty:   core.ValidatePercentRange,
			}
			for field, v := range want {
				if got, ok := s.ValueValidators[field]; !ok || got != v {
					t.Errorf("ValueValidators[%q] = (%v, %v), want %v", field, got, ok, v)
				}
			}
		})
	}
}

func TestToolValidatorsDropBadValues(t *testing.T) {
	d := core.NewDetector(Catalog())

	ahrefs, err := d.MappingFor(core.ToolAhrefs, []string{"Keyword", "CPC", "Traffic potential"})
	if err != nil {
		t.Fatalf("MappingFor(ahrefs) error = %v", err)
	}
	mk, ok := core.NewRowMapper(ahrefs.Validators).MapRow(core.RawRow{"Keyword": "crm", "CPC": "-1.5", "Traffic potential": "300"}, ahrefs.Mappings)
	if !ok {
		t.Fatal("MapRow(ahrefs) ok = false, want true")
	}
	if mk.ExtraData.Has("cpc") {
		t.Error("negative cpc was kept")
	}
	if !mk.ExtraData.Has("trafficPotential") {
		t.Error("trafficPotential was dropped")
	}

	google, err := d.MappingFor(core.ToolGoogleKeywordPlanner, []string{"Keyword", "YoY change"})
	if err != nil {
		t.Fatalf("MappingFor(google) error = %v", err)
	}
	mk, ok = core.NewRowMapper(google.Validators).MapRow(core.RawRow{"Keyword": "crm", "YoY change": "-50%"}, google.Mappings)
	if !ok {
		t.Fatal("MapRow(google) ok = false, want true")
	}
	v, _ := mk.ExtraData.Get("yoyChange")
	if f, ok := v.Number(); !ok || f != -50 {
		t.Errorf("yoyChange = %v, want -50", v)
	}
}
