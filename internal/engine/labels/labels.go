// Package labels resolves classifier output indices to waste classes and
// coarse categories.
package labels

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/pilar/internal/errs"
	"github.com/crimson-sun/pilar/internal/model"
)

// Label is a fully resolved class.
type Label struct {
	Index    int
	Class    string
	Display  string
	Category model.Category
}

// Resolver maps class indices to names and names to categories. It is
// immutable after New.
type Resolver struct {
	classes    []string
	categories map[string]model.Category
}

// New builds a resolver from the ordered label encoder classes and the
// class -> category table. Category values are normalised; anything that is
// not recognisably organic resolves to inorganic.
func New(classes []string, categoryMap map[string]string) (*Resolver, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("labels: no classes")
	}
	seen := make(map[string]bool, len(classes))
	r := &Resolver{
		classes:    make([]string, len(classes)),
		categories: make(map[string]model.Category, len(categoryMap)),
	}
	for i, c := range classes {
		c = key(c)
		if c == "" {
			return nil, fmt.Errorf("labels: class %d is empty", i)
		}
		if seen[c] {
			return nil, fmt.Errorf("labels: duplicate class %q", c)
		}
		seen[c] = true
		r.classes[i] = c
	}
	for class, cat := range categoryMap {
		c, ok := NormalizeCategory(cat)
		if !ok {
			slog.Warn("unknown category value, using inorganic", "class", class, "category", cat)
		}
		r.categories[key(class)] = c
	}
	return r, nil
}

func key(s string) string { return norm.NFC.String(strings.TrimSpace(s)) }

// Len is the number of classes.
func (r *Resolver) Len() int { return len(r.classes) }

// Classes returns a copy of the ordered class names.
func (r *Resolver) Classes() []string { return append([]string(nil), r.classes...) }

// Class returns the class name at idx.
func (r *Resolver) Class(idx int) (string, error) {
	if idx < 0 || idx >= len(r.classes) {
		return "", errs.Errorf(errs.Shape, "labels", "class index %d outside %d known classes", idx, len(r.classes))
	}
	return r.classes[idx], nil
}

// Category returns the category of class, defaulting to inorganic when the
// class is not in the table.
func (r *Resolver) Category(class string) model.Category {
	if c, ok := r.categories[key(class)]; ok {
		return c
	}
	return model.Inorganic
}

// Mapped reports whether class has an explicit category entry.
func (r *Resolver) Mapped(class string) bool {
	_, ok := r.categories[key(class)]
	return ok
}

// Resolve turns a class index into a Label.
func (r *Resolver) Resolve(idx int) (Label, error) {
	class, err := r.Class(idx)
	if err != nil {
		return Label{}, err
	}
	return Label{Index: idx, Class: class, Display: Display(class), Category: r.Category(class)}, nil
}

// NormalizeCategory maps the category spellings found in trained artifacts
// to a Category. The second result is false when v was not recognised and
// the inorganic default was substituted.
func NormalizeCategory(v string) (model.Category, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "organik", "organic":
		return model.Organic, true
	case "anorganik", "inorganic":
		return model.Inorganic, true
	default:
		return model.Inorganic, false
	}
}

// Display formats a class name for people: separators become spaces and
// each word is title-cased. It has no effect on categorisation.
func Display(class string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(class)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Title(language.Und).String(s)
}
