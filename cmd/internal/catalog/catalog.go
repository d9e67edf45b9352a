// Package catalog holds the course list shown on the site.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FilterAll matches every course.
const FilterAll = "all"

//go:embed courses.yaml
var defaultCourses []byte

// ErrEmptyCatalog is returned when a catalog file lists no courses.
var ErrEmptyCatalog = errors.New("catalog: no courses")

// Course is one catalog entry.
type Course struct {
	Title      string     `yaml:"title" json:"title"`
	Categories Categories `yaml:"category" json:"categories"`
	Tags       []string   `yaml:"tags" json:"tags"`
	Image      string     `yaml:"image" json:"image"`
}

// Categories decodes from either a single YAML scalar or a sequence.
type Categories []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Categories) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*c = Categories{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = list
		return nil
	default:
		return fmt.Errorf("catalog: line %d: category must be a string or a list", node.Line)
	}
}

// In reports whether the course is filed under category.
func (c Course) In(category string) bool {
	return slices.Contains(c.Categories, category)
}

type document struct {
	Courses []Course `yaml:"courses"`
}

// Catalog is an immutable course list. Safe for concurrent use.
type Catalog struct {
	courses []Course
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCourses)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes a YAML catalog document.
func Parse(b []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(doc.Courses) == 0 {
		return nil, ErrEmptyCatalog
	}
	for i, c := range doc.Courses {
		if strings.TrimSpace(c.Title) == "" {
			return nil, fmt.Errorf("catalog: course %d: missing title", i)
		}
		if len(c.Categories) == 0 {
			return nil, fmt.Errorf("catalog: course %q: missing category", c.Title)
		}
	}
	return &Catalog{courses: doc.Courses}, nil
}

// All returns every course in file order.
func (c *Catalog) All() []Course {
	return slices.Clone(c.courses)
}

// Filter returns the courses filed under category. Empty or "all" returns
// everything.
func (c *Catalog) Filter(category string) []Course {
	category = strings.TrimSpace(category)
	if category == "" || category == FilterAll {
		return c.All()
	}
	var out []Course
	for _, course := range c.courses {
		if course.In(category) {
			out = append(out, course)
		}
	}
	return out
}

// Search matches query case-insensitively against titles and tags. An empty
// query returns everything.
func (c *Catalog) Search(query string) []Course {
	return search(c.courses, query)
}

func search(courses []Course, query string) []Course {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(courses)
	}
	var out []Course
	for _, course := range courses {
		if strings.Contains(strings.ToLower(course.Title), q) {
			out = append(out, course)
			continue
		}
		if slices.ContainsFunc(course.Tags, func(t string) bool {
			return strings.Contains(strings.ToLower(t), q)
		}) {
			out = append(out, course)
		}
	}
	return out
}

// Categories returns the distinct categories in sorted order.
func (c *Catalog) Categories() []string {
	var out []string
	for _, course := range c.courses {
		for _, cat := range course.Categories {
			if !slices.Contains(out, cat) {
				out = append(out, cat)
			}
		}
	}
	slices.Sort(out)
	return out
}
