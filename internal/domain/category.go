package domain

import "fmt"

// Category is one of the four comparison axes a profile is decomposed into.
type Category int

// Category values. The order is the iteration order used for scoring.
const (
	CategorySkills Category = iota
	CategoryCareer
	CategoryCulture
	CategorySalary

	categoryCount
)

// AllCategories lists every category in scoring order.
var AllCategories = [categoryCount]Category{
	CategorySkills,
	CategoryCareer,
	CategoryCulture,
	CategorySalary,
}

var categoryNames = [categoryCount]string{
	CategorySkills:  "skills",
	CategoryCareer:  "career",
	CategoryCulture: "culture",
	CategorySalary:  "salary",
}

// String returns the wire name of the category.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	return c >= 0 && c < categoryCount
}

// ParseCategory converts a wire name into a Category.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q: %w", s, ErrInvalidArgument)
}

// MarshalText implements encoding.TextMarshaler so categories can be JSON map keys.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// EntityType distinguishes candidate profiles from vacancy profiles.
type EntityType string

// Entity types.
const (
	EntityCandidate EntityType = "candidate"
	EntityVacancy   EntityType = "vacancy"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityCandidate || t == EntityVacancy
}

// ParseEntityType converts a wire name into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q: %w", s, ErrInvalidArgument)
	}
	return t, nil
}
