package models

// CategoriesVersion changes whenever the category table below changes.
const CategoriesVersion = "1"

// Category ids as exported. Detector class indices are offset by one.
const (
	CategoryEmpty   = 0
	CategoryAnimal  = 1
	CategoryHuman   = 2
	CategoryVehicle = 3
)

// Categories is the fixed, ordered category table. Index 0 is the background.
var Categories = []string{"Empty", "Animal", "Human", "Vehicle"}

// Category is one exported category entry.
type Category struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// CategoryList returns the table as id/name pairs.
func CategoryList() []Category {
	list := make([]Category, len(Categories))
	for i, name := range Categories {
		list[i] = Category{Name: name, ID: i}
	}
	return list
}

// CategoryName maps a category id to its name, "Unknown" when out of range.
func CategoryName(id int) string {
	if id < 0 || id >= len(Categories) {
		return "Unknown"
	}
	return Categories[id]
}
