package utils

import (
	"strings"
)

// CatalogCacheVersion is bumped whenever the cached JSON shape changes so old
// entries are never served.
const CatalogCacheVersion = "v1"

// BuildCatalogCacheKey builds keys such as "catalog:courses:v1:levelId=x:subjectId=".
// Params are given as alternating name/value pairs and values are lower-cased.
func BuildCatalogCacheKey(family string, params ...string) string {
	var b strings.Builder
	b.WriteString("catalog:")
	b.WriteString(family)
	b.WriteString(":")
	b.WriteString(CatalogCacheVersion)

	for i := 0; i+1 < len(params); i += 2 {
		b.WriteString(":")
		b.WriteString(params[i])
		b.WriteString("=")
		b.WriteString(strings.ToLower(strings.TrimSpace(params[i+1])))
	}
	return b.String()
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
