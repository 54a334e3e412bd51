package service

import "hash/fnv"

var categoryPalette = []string{
	"#F44336", "#E91E63", "#9C27B0", "#673AB7", "#3F51B5", "#2196F3",
	"#03A9F4", "#009688", "#4CAF50", "#8BC34A", "#FF9800", "#795548",
}

// categoryColor picks a stable display color for a category name.
func categoryColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return categoryPalette[h.Sum32()%uint32(len(categoryPalette))]
}
