package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Product is an Open Food Facts record. It is never mutated after decoding.
type Product struct {
	Code             string     `json:"code"`
	ProductName      string     `json:"product_name,omitempty"`
	Brands           string     `json:"brands,omitempty"`
	Categories       string     `json:"categories,omitempty"`
	NutritionGrades  string     `json:"nutrition_grades,omitempty"`
	NutritionScoreFR FlexInt    `json:"nutrition_score_fr,omitempty"`
	CreatedT         FlexInt    `json:"created_t,omitempty"`
	ImageURL         string     `json:"image_url,omitempty"`
	IngredientsText  string     `json:"ingredients_text,omitempty"`
	Allergens        string     `json:"allergens,omitempty"`
	Labels           string     `json:"labels,omitempty"`
	Stores           string     `json:"stores,omitempty"`
	Countries        string     `json:"countries,omitempty"`
	Quantity         string     `json:"quantity,omitempty"`
	Nutriments       Nutriments `json:"nutriments,omitempty"`
}

// Category is one entry of the upstream category taxonomy.
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Products FlexInt `json:"products,omitempty"`
}

// FlexInt decodes a JSON number, a numeric string or null. The upstream
// database stores some integer fields as strings for older products.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("flexint: invalid value %q", data)
	}
	*f = FlexInt(v)
	return nil
}

// Nutriments holds per-100g nutrition facts keyed as upstream reports them.
type Nutriments map[string]any

// Float coerces a nutriment value to float64. Numbers and numeric strings are accepted.
func (n Nutriments) Float(key string) (float64, bool) {
	v, ok := n[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Energy100g prefers the kcal figure and falls back to the generic energy field.
func (n Nutriments) Energy100g() (float64, bool) {
	if v, ok := n.Float("energy-kcal_100g"); ok {
		return v, true
	}
	return n.Float("energy_100g")
}

func (n Nutriments) Fat100g() (float64, bool)           { return n.Float("fat_100g") }
func (n Nutriments) Carbohydrates100g() (float64, bool) { return n.Float("carbohydrates_100g") }
func (n Nutriments) Proteins100g() (float64, bool)      { return n.Float("proteins_100g") }
