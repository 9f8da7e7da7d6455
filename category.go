package blogflow

import "slices"

// Category is one of the fixed topics a post is filed under.
type Category string

// Categories is a slice of Category.
type Categories []Category

const (
	CategoryTechnology Category = "technology"
	CategoryDesign     Category = "design"
	CategoryBusiness   Category = "business"
	CategoryLifestyle  Category = "lifestyle"
	CategoryTravel     Category = "travel"
	CategoryFood       Category = "food"
	CategoryHealth     Category = "health"
	CategoryEducation  Category = "education"
	CategoryAll        Category = "all"
)

// String returns the string representation of the Category.
func (c Category) String() string {
	return string(c)
}

// IsAll returns true if the Category is the "all" filter sentinel or empty.
func (c Category) IsAll() bool {
	return c == CategoryAll || c == ""
}

// IsValid returns true if the Category is one of the default categories.
func (c Category) IsValid() bool {
	return DefaultCategories().Has(c)
}

// Has returns true if the category is in the list.
func (cs Categories) Has(c Category) bool {
	return slices.Contains(cs, c)
}

func DefaultCategories() Categories {
	return Categories{
		CategoryTechnology,
		CategoryDesign,
		CategoryBusiness,
		CategoryLifestyle,
		CategoryTravel,
		CategoryFood,
		CategoryHealth,
		CategoryEducation,
	}
}
