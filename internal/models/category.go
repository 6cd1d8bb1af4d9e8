package models

// Category classifies a site for summaries
type Category string

const (
	CategoryProductive  Category = "productive"
	CategoryNeutral     Category = "neutral"
	CategoryDistracting Category = "distracting"
)

// IsValid reports whether c is one of the three known categories
func (c Category) IsValid() bool {
	switch c {
	case CategoryProductive, CategoryNeutral, CategoryDistracting:
		return true
	default:
		return false
	}
}

// SiteCategories is the persisted category membership.
// Neutral is the default and is never populated; it exists so the stored
// document keeps the same three keys the extension reads.
type SiteCategories struct {
	Productive  []string `json:"productive" yaml:"productive"`
	Neutral     []string `json:"neutral" yaml:"neutral"`
	Distracting []string `json:"distracting" yaml:"distracting"`
}

// NewSiteCategories returns empty (non-nil) membership lists
func NewSiteCategories() SiteCategories {
	return SiteCategories{
		Productive:  []string{},
		Neutral:     []string{},
		Distracting: []string{},
	}
}

// CategoryIndex maps sites with an explicit category to that category
type CategoryIndex map[string]Category

// Classify returns the category of site, neutral when it has none
func (idx CategoryIndex) Classify(site string) Category {
	if c, ok := idx[site]; ok {
		return c
	}
	return CategoryNeutral
}

// Lookup builds the index used to classify many sites. Productive is applied
// last, so a corrupted dual membership resolves to productive.
func (c SiteCategories) Lookup() CategoryIndex {
	idx := make(CategoryIndex, len(c.Productive)+len(c.Distracting))
	for _, s := range c.Distracting {
		idx[s] = CategoryDistracting
	}
	for _, s := range c.Productive {
		idx[s] = CategoryProductive
	}
	return idx
}
