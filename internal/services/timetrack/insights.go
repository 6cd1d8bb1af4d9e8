package timetrack

import (
	"context"
	"fmt"
	"math"

	"github.com/benvon/sitetime/internal/models"
)

// Insight kinds
const (
	InsightNoData       = "no_data"
	InsightProductivity = "productivity_score"
	InsightTopSite      = "top_site"
	InsightGoal         = "goal_progress"
	InsightLimit        = "distracting_limit"
)

const msPerHour = float64(3600000)

// Insights derives the dashboard cards for date from its summary, site
// breakdown and the saved goals
func (s *Service) Insights(ctx context.Context, date string) (*models.Insights, error) {
	day, err := s.ResolveDay(date)
	if err != nil {
		return nil, err
	}
	totals, categories, err := s.dayData(ctx, day)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	lookup := categories.Lookup()
	return buildInsights(summarize(day, totals, lookup), breakdown(totals, lookup), settings), nil
}

// ProductivityScore is productive / (productive + distracting), 0 when both are zero
func ProductivityScore(summary *models.DailySummary) float64 {
	denominator := summary.ProductiveTime + summary.DistractingTime
	if denominator <= 0 {
		return 0
	}
	return float64(summary.ProductiveTime) / float64(denominator)
}

func buildInsights(summary *models.DailySummary, sitesByTime []models.SiteTime, settings models.Settings) *models.Insights {
	out := &models.Insights{Date: summary.Date, Insights: []models.Insight{}}

	if summary.TotalTime == 0 {
		out.Insights = append(out.Insights, models.Insight{
			Kind:    InsightNoData,
			Title:   "No data available",
			Message: "There is no browsing data recorded for this day.",
		})
		return out
	}
	out.HasData = true

	score := ProductivityScore(summary)
	var scoreMessage string
	switch {
	case score >= 0.7:
		scoreMessage = "Great job! You spent most of your time on productive sites."
	case score >= 0.5:
		scoreMessage = "You had a balanced day between productive and distracting activities."
	default:
		scoreMessage = "You spent more time on distracting sites than productive ones today."
	}
	scorePercent := round(score * 100)
	out.Insights = append(out.Insights, models.Insight{
		Kind:    InsightProductivity,
		Title:   fmt.Sprintf("Productivity Score: %d%%", scorePercent),
		Message: scoreMessage,
		Percent: scorePercent,
	})

	if len(sitesByTime) > 0 {
		top := sitesByTime[0]
		var categoryMessage string
		switch top.Category {
		case models.CategoryProductive:
			categoryMessage = "This is a productive site. Great job focusing your time here!"
		case models.CategoryDistracting:
			categoryMessage = "This is marked as a distracting site. Consider limiting your time here."
		default:
			categoryMessage = "This site is not categorized yet. Consider marking it as productive or distracting."
		}
		share := round(percentOf(top.TimeSpent, summary.TotalTime))
		out.Insights = append(out.Insights, models.Insight{
			Kind:  InsightTopSite,
			Title: "Top Time Consumer: " + top.Hostname,
			Message: fmt.Sprintf("You spent %s (%d%% of your browsing time) on this site. %s",
				FormatDuration(top.TimeSpent), share, categoryMessage),
			Percent: share,
		})
	}

	if settings.DailyProductiveGoal > 0 {
		progress := float64(summary.ProductiveTime) / (settings.DailyProductiveGoal * msPerHour) * 100
		var goalMessage string
		switch {
		case progress >= 100:
			goalMessage = "Congratulations! You reached your daily productive time goal."
		case progress >= 70:
			goalMessage = "You're making good progress toward your daily productive time goal."
		default:
			goalMessage = "You still have some way to go to reach your daily productive time goal."
		}
		capped := round(math.Min(100, progress))
		out.Insights = append(out.Insights, models.Insight{
			Kind:    InsightGoal,
			Title:   fmt.Sprintf("Goal Progress: %d%%", capped),
			Message: goalMessage,
			Percent: capped,
		})
	}

	if settings.DailyDistractingLimit > 0 {
		progress := float64(summary.DistractingTime) / (settings.DailyDistractingLimit * msPerHour) * 100
		var limitMessage string
		switch {
		case progress >= 100:
			limitMessage = "You've exceeded your daily limit for distracting sites."
		case progress >= 70:
			limitMessage = "You're approaching your daily limit for distracting sites."
		default:
			limitMessage = "You're well within your daily limit for distracting sites."
		}
		percent := round(progress)
		out.Insights = append(out.Insights, models.Insight{
			Kind:    InsightLimit,
			Title:   fmt.Sprintf("Distracting Time: %d%% of limit", percent),
			Message: limitMessage,
			Percent: percent,
		})
	}

	return out
}

func round(f float64) int {
	return int(math.Round(f))
}
