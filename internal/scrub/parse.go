package scrub

import "strings"

// ParseReportSummary extracts calibration items from the free-text summary
// field of a calibration report. Used as a fallback when the structured
// report-derived list is unavailable. Items are separated by ';' or ',' and
// may carry a type annotation in parentheses, e.g.
// "Front Camera (Dynamic); Blind Spot Radar (static), Steering Angle Reset".
func ParseReportSummary(text string) []ReportItem {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ';' || r == ','
	})

	var items []ReportItem
	for _, field := range fields {
		name := strings.TrimSpace(field)
		if name == "" {
			continue
		}
		calType := "Static"
		if open := strings.Index(name, "("); open >= 0 {
			annotation := name[open+1:]
			if close := strings.Index(annotation, ")"); close >= 0 {
				annotation = annotation[:close]
			}
			calType = normalizeCalType(annotation)
			name = strings.TrimSpace(name[:open])
			if name == "" {
				continue
			}
		}
		items = append(items, ReportItem{Name: name, Type: calType})
	}
	return items
}

func normalizeCalType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dynamic":
		return "Dynamic"
	case "reset":
		return "Reset"
	default:
		return "Static"
	}
}
