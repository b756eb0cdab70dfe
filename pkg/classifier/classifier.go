// Package classifier maps payment notification text to an expense category.
//
// Classification runs in two stages. The emoji fast path looks for one of a
// few mapped emoji in the notification text and returns the first hit. The
// keyword stage scores every category by how many of its rules fire on the
// lower-cased title and text, and picks the highest score; ties go to the
// category declared first.
//
// The pattern table is loaded once from an embedded YAML file and is never
// mutated, so all functions are safe for concurrent use.
package classifier

import (
	_ "embed"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed patterns.yaml
var patternsYAML []byte

// Category is an expense category label. The zero value is Unknown.
type Category string

// Known categories in declaration order.
const (
	Unknown       Category = ""
	Restaurant    Category = "restaurant"
	Grocery       Category = "grocery"
	Fuel          Category = "fuel"
	Transport     Category = "transport"
	Shopping      Category = "shopping"
	Entertainment Category = "entertainment"
	Health        Category = "health"
	Accommodation Category = "accommodation"
	Travel        Category = "travel"
	Services      Category = "services"
	Utilities     Category = "utilities"
	Subscription  Category = "subscription"
)

// Categories lists every known category in declaration order.
var Categories = []Category{
	Restaurant, Grocery, Fuel, Transport, Shopping, Entertainment,
	Health, Accommodation, Travel, Services, Utilities, Subscription,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	if c == Unknown {
		return "unknown"
	}
	return string(c)
}

// Stage identifies which classification stage produced a category.
type Stage string

const (
	StageNone    Stage = "none"
	StageEmoji   Stage = "emoji"
	StageKeyword Stage = "keyword"
)

// Score is the number of rules of a category that fired.
type Score struct {
	Category Category
	Matches  int
}

var defaultTable = mustLoad(patternsYAML)

// Default returns the embedded pattern table.
func Default() *Table {
	return defaultTable
}

func mustLoad(data []byte) *Table {
	t, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("classifier: loading embedded patterns: %v", err))
	}
	return t
}

// lower folds s the same way for rule terms and classified content.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// ClassifyEmoji runs the emoji fast path of the default table.
func ClassifyEmoji(text string) Category {
	return defaultTable.ClassifyEmoji(text)
}

// Classify runs the keyword stage of the default table.
func Classify(title, text string) Category {
	return defaultTable.Classify(title, text)
}

// Detect runs both stages of the default table.
func Detect(title, text string) (Category, Stage) {
	return defaultTable.Detect(title, text)
}

// Scores returns the per-category keyword scores of the default table.
func Scores(title, text string) []Score {
	return defaultTable.Scores(title, text)
}
