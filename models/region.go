package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Region is a statistical region of Serbia used to pick a decay rate
type Region string

const (
	RegionVojvodina          Region = "vojvodina"
	RegionBelgrade           Region = "belgrade"
	RegionSumadijaPomoravlje Region = "sumadija_pomoravlje"
	RegionWesternSerbia      Region = "western_serbia"
	RegionEasternSerbia      Region = "eastern_serbia"
	RegionSouthernSerbia     Region = "southern_serbia"
	RegionKosovoMetohija     Region = "kosovo_metohija"
)

// AllRegions lists every known region in a stable order
var AllRegions = []Region{
	RegionVojvodina,
	RegionBelgrade,
	RegionSumadijaPomoravlje,
	RegionWesternSerbia,
	RegionEasternSerbia,
	RegionSouthernSerbia,
	RegionKosovoMetohija,
}

// regionNames holds the accepted Latin and Cyrillic spellings per region.
// Spellings are folded with foldRegionName before lookup, so diacritic and
// spacing variants need not be listed.
var regionNames = map[Region][]string{
	RegionVojvodina:          {"vojvodina", "војводина"},
	RegionBelgrade:           {"beograd", "belgrade", "grad beograd", "београд", "град београд"},
	RegionSumadijaPomoravlje: {"sumadija", "sumadija i pomoravlje", "шумадија", "шумадија и поморавље"},
	RegionWesternSerbia:      {"zapadna srbija", "western serbia", "западна србија"},
	RegionEasternSerbia:      {"istocna srbija", "eastern serbia", "источна србија"},
	RegionSouthernSerbia:     {"juzna srbija", "southern serbia", "јужна србија"},
	RegionKosovoMetohija:     {"kosovo i metohija", "kosovo", "kosovo and metohija", "косово и метохија", "косово"},
}

var regionLookup = buildRegionLookup()

func buildRegionLookup() map[string]Region {
	lookup := make(map[string]Region)
	for region, names := range regionNames {
		for _, name := range names {
			lookup[foldRegionName(name)] = region
		}
		lookup[foldRegionName(string(region))] = region
	}
	return lookup
}

// ParseRegion maps free-text region names to a Region. Unrecognized or empty
// text returns nil.
func ParseRegion(raw string) *Region {
	key := foldRegionName(raw)
	if key == "" {
		return nil
	}
	region, ok := regionLookup[key]
	if !ok {
		return nil
	}
	return &region
}

// foldRegionName lowercases, strips diacritics and drops whitespace,
// underscores and quotes so "Šumadija i Pomoravlje" and "sumadijaipomoravlje"
// compare equal.
func foldRegionName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "đ", "dj")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' || r == '-' || r == '"' || r == '\'' {
			return -1
		}
		return r
	}, s)
}
