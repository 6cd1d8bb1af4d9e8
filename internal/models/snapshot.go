package models

// Snapshot is the full persisted state in the layout the extension stores:
// siteData, blockedSites, siteCategories and settings as top-level records.
type Snapshot struct {
	SiteData       SiteData       `json:"siteData" yaml:"siteData"`
	BlockedSites   []string       `json:"blockedSites" yaml:"blockedSites"`
	SiteCategories SiteCategories `json:"siteCategories" yaml:"siteCategories"`
	Settings       *Settings      `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// NewSnapshot returns an empty snapshot with default settings
func NewSnapshot() *Snapshot {
	settings := DefaultSettings()
	return &Snapshot{
		SiteData:       SiteData{},
		BlockedSites:   []string{},
		SiteCategories: NewSiteCategories(),
		Settings:       &settings,
	}
}
