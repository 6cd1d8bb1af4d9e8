package models

// DailySummary is the per-category time split for one day
type DailySummary struct {
	Date            string `json:"date"`
	ProductiveTime  int64  `json:"productiveTime"`
	NeutralTime     int64  `json:"neutralTime"`
	DistractingTime int64  `json:"distractingTime"`
	TotalTime       int64  `json:"totalTime"`
	SitesVisited    int    `json:"sitesVisited"`
}

// Insight is one dashboard card derived from a day's summary
type Insight struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
	// Percent is the score or progress value the card is about, rounded
	Percent int `json:"percent"`
}

// Insights groups all cards for a day
type Insights struct {
	Date     string    `json:"date"`
	HasData  bool      `json:"hasData"`
	Insights []Insight `json:"insights"`
}
