package models

import "strings"

// LandfillCategory is the management class of a landfill site
type LandfillCategory string

const (
	// CategoryIllegal is an unmanaged, informal dump
	CategoryIllegal LandfillCategory = "illegal"
	// CategoryNonSanitary is a managed site below sanitary standards
	CategoryNonSanitary LandfillCategory = "non_sanitary"
	// CategorySanitary is an engineered sanitary landfill
	CategorySanitary LandfillCategory = "sanitary"
)

// FallbackCategory is assigned when a classifier label has no mapping.
// Callers are expected to log every use of it.
const FallbackCategory = CategoryIllegal

// Classifier labels that mark an image as containing a landfill
const (
	LabelIllegal    = "illegal"
	LabelNonIllegal = "non_illegal"
)

// IsLandfillLabel reports whether a classifier label is one of the two
// landfill-relevant categories
func IsLandfillLabel(label string) bool {
	switch normalizeLabel(label) {
	case LabelIllegal, LabelNonIllegal:
		return true
	}
	return false
}

// MapCategory maps a classifier label to a LandfillCategory. The second
// return value is false when the fallback policy was applied.
func MapCategory(label string) (LandfillCategory, bool) {
	switch normalizeLabel(label) {
	case "illegal", "wild":
		return CategoryIllegal, true
	case "non_illegal", "nonsanitary", "non_sanitary", "unsanitary":
		return CategoryNonSanitary, true
	case "sanitary":
		return CategorySanitary, true
	}
	return FallbackCategory, false
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
