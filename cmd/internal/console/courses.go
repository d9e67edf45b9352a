package console

import (
	"strings"

	"unileap/cmd/internal/catalog"
)

// Courses lists courses as cards, or the empty-state line when there are none.
func Courses(courses []catalog.Course) string {
	if len(courses) == 0 {
		return mutedStyle.Render("No courses in this category yet.")
	}
	var b strings.Builder
	for i, c := range courses {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(cardTitleStyle.Render(c.Title))
		b.WriteString("  ")
		b.WriteString(mutedStyle.Render(strings.Join(c.Categories, ", ")))
		if len(c.Tags) > 0 {
			tags := make([]string, 0, len(c.Tags))
			for _, t := range c.Tags {
				tags = append(tags, tagStyle.Render("#"+t))
			}
			b.WriteString("\n  ")
			b.WriteString(strings.Join(tags, " "))
		}
	}
	return b.String()
}
