// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package off

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Number is a nutriment value. Open Food Facts serves numbers, numeric
// strings (sometimes with a decimal comma) or null; anything unparsable is
// treated as absent.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a valid Number.
func Num(v float64) Number { return Number{Value: v, Valid: true} }

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		*n = Num(v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Nutriments holds per-100g values.
type Nutriments struct {
	EnergyKcal    Number `json:"energy-kcal_100g"`
	Fat           Number `json:"fat_100g"`
	SaturatedFat  Number `json:"saturated-fat_100g"`
	Carbohydrates Number `json:"carbohydrates_100g"`
	Sugars        Number `json:"sugars_100g"`
	Proteins      Number `json:"proteins_100g"`
	Salt          Number `json:"salt_100g"`
}

// Product is the subset of an Open Food Facts product the UI shows.
type Product struct {
	Code               string     `json:"code"`
	ProductName        string     `json:"product_name"`
	Brands             string     `json:"brands"`
	NutritionGrades    string     `json:"nutrition_grades"`
	NovaGroup          Number     `json:"nova_group"`
	Allergens          string     `json:"allergens"`
	Countries          string     `json:"countries"`
	CountriesTags      []string   `json:"countries_tags"`
	LabelsTags         []string   `json:"labels_tags"`
	ImageFrontURL      string     `json:"image_front_url"`
	ImageFrontSmallURL string     `json:"image_front_small_url"`
	ImageURL           string     `json:"image_url"`
	ImageSmallURL      string     `json:"image_small_url"`
	Nutriments         Nutriments `json:"nutriments"`
}

// AvailableInMontenegro answers "YES", "NO" or "?" when the product lists
// no countries at all.
func AvailableInMontenegro(p Product) string {
	names := CountryList(p)
	for i, n := range names {
		names[i] = strings.ToLower(n)
	}
	switch {
	case len(names) == 0:
		return "?"
	case slices.Contains(names, "montenegro"):
		return "YES"
	default:
		return "NO"
	}
}

// CountryList returns the countries the product is sold in.
// countries_tags wins over the free-text countries.
func CountryList(p Product) []string {
	var names []string
	if len(p.CountriesTags) > 0 {
		for _, t := range p.CountriesTags {
			if t = stripLang(t); t != "" {
				names = append(names, t)
			}
		}
		return names
	}
	for c := range strings.SplitSeq(p.Countries, ",") {
		if c = strings.TrimSpace(c); c != "" {
			names = append(names, c)
		}
	}
	return names
}

// AllergenList splits the allergens field ("en:milk,en:nuts") into bare
// names, in order and without duplicates.
func AllergenList(p Product) []string {
	var out []string
	for a := range strings.SplitSeq(p.Allergens, ",") {
		if a = stripLang(a); a != "" && !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

// NovaGroup returns the NOVA processing group 1..4, or 0 when unknown.
func NovaGroup(p Product) int {
	if !p.NovaGroup.Valid {
		return 0
	}
	g := int(p.NovaGroup.Value)
	if g < 1 || g > 4 || float64(g) != p.NovaGroup.Value {
		return 0
	}
	return g
}

func stripLang(tag string) string {
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		tag = tag[i+1:]
	}
	return strings.TrimSpace(tag)
}

// NutriScoreGrade returns the lower-case grade a..e, or "" when unknown.
func NutriScoreGrade(p Product) string {
	g := strings.ToLower(strings.TrimSpace(p.NutritionGrades))
	if len(g) == 1 && g[0] >= 'a' && g[0] <= 'e' {
		return g
	}
	return ""
}

// ImageURL picks the best available product image, preferring the front.
func ImageURL(p Product) string {
	for _, u := range []string{p.ImageFrontURL, p.ImageURL, p.ImageFrontSmallURL, p.ImageSmallURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// IsVegan reports whether any label tag mentions vegan.
func IsVegan(p Product) bool {
	return strings.Contains(strings.Join(p.LabelsTags, " "), "vegan")
}
