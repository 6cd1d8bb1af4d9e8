package models

// Settings holds the user preferences stored next to the ledger
type Settings struct {
	TrackIncognito    bool `json:"trackIncognito" yaml:"trackIncognito"`
	SyncData          bool `json:"syncData" yaml:"syncData"`
	ShowNotifications bool `json:"showNotifications" yaml:"showNotifications"`
	// DailyProductiveGoal is expressed in hours
	DailyProductiveGoal float64 `json:"dailyProductiveGoal" yaml:"dailyProductiveGoal" validate:"gte=0,lte=24"`
	// DailyDistractingLimit is expressed in hours
	DailyDistractingLimit float64 `json:"dailyDistractingLimit" yaml:"dailyDistractingLimit" validate:"gte=0,lte=24"`
}

// DefaultSettings returns the settings a fresh install starts with
func DefaultSettings() Settings {
	return Settings{
		TrackIncognito:        false,
		SyncData:              true,
		ShowNotifications:     true,
		DailyProductiveGoal:   4,
		DailyDistractingLimit: 2,
	}
}
