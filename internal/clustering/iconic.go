package clustering

import (
	"strings"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/models"
)

var iconicCategories = map[models.ActivityCategory]bool{
	models.CategoryLandmark:  true,
	models.CategoryTemple:    true,
	models.CategoryShrine:    true,
	models.CategoryCastle:    true,
	models.CategoryViewpoint: true,
}

var landmarks = cities.DefaultCatalog().Landmarks

// IconicScore rates how emblematic an activity is on a 0-100 scale
func IconicScore(a *models.Activity) int {
	score := 0

	text := cities.Fold(a.Title + " " + a.Name + " " + a.Description)
	for _, lm := range landmarks {
		if strings.Contains(text, lm) {
			score += 50
			break
		}
	}

	if iconicCategories[a.Category] {
		score += 30
	}

	switch {
	case a.Popularity >= 85:
		score += 20
	case a.Popularity >= 70:
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}
