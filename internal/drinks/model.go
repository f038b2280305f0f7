package drinks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

const maxTitleLength = 80

// Ingredient is one colored layer of a drink.
type Ingredient struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// Recipe is the ordered list of ingredients of a drink.
type Recipe []Ingredient

// UnmarshalJSON accepts either a list of ingredients or a single ingredient
// object, which is decoded as a one-element recipe.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*r = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single Ingredient
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*r = Recipe{single}
		return nil
	}
	var ingredients []Ingredient
	if err := json.Unmarshal(trimmed, &ingredients); err != nil {
		return err
	}
	*r = Recipe(ingredients)
	return nil
}

// Drink is a persisted drink. The recipe lives in a single JSON column.
type Drink struct {
	ID     uint                       `gorm:"column:id;primaryKey;autoIncrement"`
	Title  string                     `gorm:"column:title;size:80;not null;uniqueIndex:idx_drinks_title"`
	Recipe datatypes.JSONType[Recipe] `gorm:"column:recipe;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Drink) TableName() string {
	return "drinks"
}

// NewDrink builds an unsaved drink.
func NewDrink(title string, recipe Recipe) Drink {
	return Drink{
		Title:  strings.TrimSpace(title),
		Recipe: datatypes.NewJSONType(recipe),
	}
}

// Ingredients returns the decoded recipe.
func (d Drink) Ingredients() Recipe {
	return d.Recipe.Data()
}

// Validate checks the invariants enforced before a write.
func (d Drink) Validate() error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDrink)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidDrink, maxTitleLength)
	}
	recipe := d.Ingredients()
	if recipe == nil {
		return fmt.Errorf("%w: recipe is required", ErrInvalidDrink)
	}
	for index, ingredient := range recipe {
		if strings.TrimSpace(ingredient.Name) == "" {
			return fmt.Errorf("%w: ingredient %d has no name", ErrInvalidDrink, index)
		}
		if ingredient.Parts < 0 {
			return fmt.Errorf("%w: ingredient %d has negative parts", ErrInvalidDrink, index)
		}
	}
	return nil
}

// Patch lists the fields of a partial update; nil fields are left unchanged.
type Patch struct {
	Title  *string
	Recipe *Recipe
}

// Apply copies the supplied patch fields onto d.
func (d *Drink) Apply(patch Patch) {
	if patch.Title != nil {
		d.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Recipe != nil {
		d.Recipe = datatypes.NewJSONType(*patch.Recipe)
	}
}

// ShortIngredient is an ingredient without its proportions.
type ShortIngredient struct {
	Color string `json:"color"`
	Name  string `json:"name"`
}

// ShortDrink is the public projection of a drink.
type ShortDrink struct {
	ID     uint              `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// LongDrink is the full projection of a drink, including ingredient parts.
type LongDrink struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Recipe Recipe `json:"recipe"`
}

// Short projects d without ingredient parts.
func (d Drink) Short() ShortDrink {
	recipe := d.Ingredients()
	short := make([]ShortIngredient, 0, len(recipe))
	for _, ingredient := range recipe {
		short = append(short, ShortIngredient{Color: ingredient.Color, Name: ingredient.Name})
	}
	return ShortDrink{ID: d.ID, Title: d.Title, Recipe: short}
}

// Long projects every field of d.
func (d Drink) Long() LongDrink {
	recipe := d.Ingredients()
	if recipe == nil {
		recipe = Recipe{}
	}
	return LongDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}
