package scrub

import (
	"reflect"
	"testing"
)

func TestParseReportSummary(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ReportItem
	}{
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
		{
			name: "semicolon separated with types",
			text: "Front Camera (Dynamic); Blind Spot Radar (static); Steering Angle (Reset)",
			want: []ReportItem{
				{Name: "Front Camera", Type: "Dynamic"},
				{Name: "Blind Spot Radar", Type: "Static"},
				{Name: "Steering Angle", Type: "Reset"},
			},
		},
		{
			name: "comma separated defaults to static",
			text: "Front Camera, Rear Radar",
			want: []ReportItem{
				{Name: "Front Camera", Type: "Static"},
				{Name: "Rear Radar", Type: "Static"},
			},
		},
		{
			name: "unknown annotation defaults to static",
			text: "Surround View (calibrate)",
			want: []ReportItem{{Name: "Surround View", Type: "Static"}},
		},
		{
			name: "stray separators skipped",
			text: "; Front Camera ;; ,",
			want: []ReportItem{{Name: "Front Camera", Type: "Static"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseReportSummary(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseReportSummary(%q) = %#v, want %#v", tc.text, got, tc.want)
			}
		})
	}
}
