package postgres

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/coastwatch/hazard-monitor/internal/domain"
)

// mergeActivity folds incidents, citizen reports and relevant social posts
// into one feed, newest first, capped at limit. Pure so it can be tested
// without a database.
func mergeActivity(limit int, incidents []domain.Incident, reports []domain.CitizenReport, posts []domain.SocialMediaPost) []domain.Activity {
	feed := make([]domain.Activity, 0, len(incidents)+len(reports)+len(posts))

	for _, inc := range incidents {
		feed = append(feed, domain.Activity{
			ID:        inc.ID,
			Type:      domain.ActivityIncident,
			Title:     inc.Title,
			Severity:  inc.Severity,
			Timestamp: inc.CreatedAt,
			Location:  inc.Location,
		})
	}
	for _, rep := range reports {
		feed = append(feed, domain.Activity{
			ID:        rep.ID,
			Type:      domain.ActivityReport,
			Title:     reportTitle(rep),
			Severity:  rep.Severity,
			Timestamp: rep.CreatedAt,
			Location:  rep.Location,
		})
	}
	for _, post := range posts {
		feed = append(feed, domain.Activity{
			ID:        post.ID,
			Type:      domain.ActivitySocial,
			Title:     truncate(post.Content, 80),
			Severity:  post.Severity,
			Timestamp: post.ProcessedAt,
			Location:  post.Location,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})

	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}

func reportTitle(rep domain.CitizenReport) string {
	hazard := strings.ReplaceAll(rep.HazardType, "_", " ")
	if rep.Location == "" {
		return "Citizen report: " + hazard
	}
	return "Citizen report: " + hazard + " near " + rep.Location
}

// truncate cuts s to at most n bytes, backing off to a rune boundary so a
// multibyte character is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n]) + "..."
}
