package catalog

import (
	"cmp"
	"slices"
	"strings"

	"food-explorer/pkg/models"
)

// FilterByCategory keeps the products whose categories contain category,
// case-insensitively. An empty category returns a copy of list.
func FilterByCategory(list []models.Product, category string) []models.Product {
	if category == "" {
		return slices.Clone(list)
	}
	needle := strings.ToLower(category)
	filtered := make([]models.Product, 0, len(list))
	for _, p := range list {
		if p.Categories != "" && strings.Contains(strings.ToLower(p.Categories), needle) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// Sort returns a sorted copy of list. Ties keep their input order, which
// makes Sort idempotent. Unknown keys return the copy unsorted.
func Sort(list []models.Product, key SortKey, order SortOrder) []models.Product {
	sorted := slices.Clone(list)
	if len(sorted) == 0 {
		return []models.Product{}
	}

	var compare func(a, b models.Product) int
	switch key {
	case SortByName:
		compare = func(a, b models.Product) int {
			return strings.Compare(strings.ToLower(a.ProductName), strings.ToLower(b.ProductName))
		}
	case SortByGrade:
		compare = func(a, b models.Product) int {
			return strings.Compare(gradeKey(a), gradeKey(b))
		}
	case SortByCategory:
		compare = func(a, b models.Product) int {
			return strings.Compare(strings.ToLower(a.Categories), strings.ToLower(b.Categories))
		}
	case SortByCreated:
		compare = func(a, b models.Product) int {
			return cmp.Compare(a.CreatedT, b.CreatedT)
		}
	default:
		return sorted
	}

	if order == Descending {
		asc := compare
		compare = func(a, b models.Product) int { return asc(b, a) }
	}
	slices.SortStableFunc(sorted, compare)
	return sorted
}

// ungraded products sort after every letter grade
func gradeKey(p models.Product) string {
	if p.NutritionGrades == "" {
		return "z"
	}
	return p.NutritionGrades
}
