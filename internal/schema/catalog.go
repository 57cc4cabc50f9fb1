// Package schema declares the export layouts of the supported SEO tools.
package schema

import "github.com/JonMunkholm/kwimport/internal/core"

// Catalog returns a catalog holding every supported tool. Registration
// order breaks detection ties, so the most common export comes first.
func Catalog() *core.Catalog {
	c := core.NewCatalog()
	c.Register(Semrush)
	c.Register(Ahrefs)
	c.Register(GoogleKeywordPlanner)
	return c
}
