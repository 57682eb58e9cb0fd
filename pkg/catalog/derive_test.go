package catalog

import (
	"testing"

	"food-explorer/pkg/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func names(list []models.Product) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.ProductName
	}
	return out
}

func scenario() []models.Product {
	return []models.Product{
		{Code: "1", ProductName: "Banana Bread", NutritionGrades: "b", Categories: "Snacks, Breads", CreatedT: 300},
		{Code: "2", ProductName: "Cola", Categories: "Beverages, Sodas", CreatedT: 100},
		{Code: "3", ProductName: "Apple Juice", NutritionGrades: "a", Categories: "beverages, Juices", CreatedT: 200},
	}
}

func TestFilterByCategory(t *testing.T) {
	list := scenario()
	list = append(list, models.Product{Code: "4", ProductName: "Mystery"})

	assert.Equal(t, []string{"Cola", "Apple Juice"}, names(FilterByCategory(list, "BEVERAGES")))
	assert.Equal(t, []string{"Banana Bread"}, names(FilterByCategory(list, "bread")))
	assert.Empty(t, FilterByCategory(list, "cheese"))

	if diff := cmp.Diff(list, FilterByCategory(list, "")); diff != "" {
		t.Errorf("empty category must return the list unchanged (-want +got):\n%s", diff)
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		name  string
		key   SortKey
		order SortOrder
		want  []string
	}{
		{"name asc", SortByName, Ascending, []string{"Apple Juice", "Banana Bread", "Cola"}},
		{"name desc", SortByName, Descending, []string{"Cola", "Banana Bread", "Apple Juice"}},
		{"grade asc puts ungraded last", SortByGrade, Ascending, []string{"Apple Juice", "Banana Bread", "Cola"}},
		{"grade desc puts ungraded first", SortByGrade, Descending, []string{"Cola", "Banana Bread", "Apple Juice"}},
		{"category asc ignores case", SortByCategory, Ascending, []string{"Apple Juice", "Cola", "Banana Bread"}},
		{"created asc", SortByCreated, Ascending, []string{"Cola", "Apple Juice", "Banana Bread"}},
		{"created desc", SortByCreated, Descending, []string{"Banana Bread", "Apple Juice", "Cola"}},
		{"unknown key keeps order", SortKey("price"), Ascending, []string{"Banana Bread", "Cola", "Apple Juice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := scenario()
			got := Sort(list, tt.key, tt.order)
			assert.Equal(t, tt.want, names(got))
			assert.Equal(t, []string{"Banana Bread", "Cola", "Apple Juice"}, names(list), "input must not be reordered")
		})
	}
}

func TestSort_Idempotent(t *testing.T) {
	list := append(scenario(),
		models.Product{Code: "5", ProductName: "cola", NutritionGrades: "b"},
		models.Product{Code: "6", ProductName: "Apple Juice", NutritionGrades: "e"},
	)
	for _, key := range []SortKey{SortByName, SortByGrade, SortByCategory, SortByCreated} {
		for _, order := range []SortOrder{Ascending, Descending} {
			once := Sort(list, key, order)
			twice := Sort(once, key, order)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("sort %s %s not idempotent (-once +twice):\n%s", key, order, diff)
			}
		}
	}
}

func TestSort_Empty(t *testing.T) {
	got := Sort(nil, SortByName, Ascending)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestIntent_Mode(t *testing.T) {
	in := DefaultIntent()
	assert.Equal(t, ModeNone, in.Mode())

	in.SelectedCategory = "snacks"
	assert.Equal(t, ModeCategory, in.Mode())

	in.BarcodeQuery = "123"
	assert.Equal(t, ModeBarcode, in.Mode())

	in.SearchQuery = "milk"
	assert.Equal(t, ModeSearch, in.Mode())

	in.SearchQuery = "   "
	assert.Equal(t, ModeBarcode, in.Mode())
}

func TestIntent_Validate(t *testing.T) {
	in := DefaultIntent()
	assert.NoError(t, in.Validate())

	in.SortBy = "price"
	assert.ErrorIs(t, in.Validate(), ErrInvalidIntent)

	in = DefaultIntent()
	in.SortOrder = "sideways"
	assert.ErrorIs(t, in.Validate(), ErrInvalidIntent)
}
