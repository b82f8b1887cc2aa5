package models

import "strings"

// ActivityCategory is the tagged category of an activity
type ActivityCategory string

const (
	CategoryLandmark      ActivityCategory = "landmark"
	CategoryTemple        ActivityCategory = "temple"
	CategoryShrine        ActivityCategory = "shrine"
	CategoryCastle        ActivityCategory = "castle"
	CategoryMuseum        ActivityCategory = "museum"
	CategoryPark          ActivityCategory = "park"
	CategoryViewpoint     ActivityCategory = "viewpoint"
	CategoryFood          ActivityCategory = "food"
	CategoryShopping      ActivityCategory = "shopping"
	CategoryNightlife     ActivityCategory = "nightlife"
	CategoryOnsen         ActivityCategory = "onsen"
	CategoryHiking        ActivityCategory = "hiking"
	CategoryTour          ActivityCategory = "tour"
	CategoryEntertainment ActivityCategory = "entertainment"
	CategoryTransport     ActivityCategory = "transport"
	CategoryOther         ActivityCategory = "other"
)

type categoryKeyword struct {
	keyword  string
	category ActivityCategory
}

// categoryKeywords is scanned in order; more specific keywords come first.
// Food places named "... bar" precede the standalone nightlife "bar".
var categoryKeywords = []categoryKeyword{
	{"onsen", CategoryOnsen},
	{"hot spring", CategoryOnsen},
	{"sento", CategoryOnsen},
	{"hiking", CategoryHiking},
	{"hike", CategoryHiking},
	{"trek", CategoryHiking},
	{"trail", CategoryHiking},
	{"sushi bar", CategoryFood},
	{"oyster bar", CategoryFood},
	{"noodle bar", CategoryFood},
	{"coffee bar", CategoryFood},
	{"juice bar", CategoryFood},
	{"nightlife", CategoryNightlife},
	{" bar ", CategoryNightlife},
	{"club", CategoryNightlife},
	{"izakaya", CategoryNightlife},
	{"karaoke", CategoryNightlife},
	{"castle", CategoryCastle},
	{"temple", CategoryTemple},
	{"-dera", CategoryTemple},
	{"-ji", CategoryTemple},
	{"shrine", CategoryShrine},
	{"jinja", CategoryShrine},
	{"taisha", CategoryShrine},
	{"museum", CategoryMuseum},
	{"gallery", CategoryMuseum},
	{"theme park", CategoryEntertainment},
	{"disney", CategoryEntertainment},
	{"garden", CategoryPark},
	{"park", CategoryPark},
	{"observatory", CategoryViewpoint},
	{"observation", CategoryViewpoint},
	{"tower", CategoryViewpoint},
	{"skytree", CategoryViewpoint},
	{"viewpoint", CategoryViewpoint},
	{"market", CategoryFood},
	{"ramen", CategoryFood},
	{"sushi", CategoryFood},
	{"restaurant", CategoryFood},
	{"dinner", CategoryFood},
	{"lunch", CategoryFood},
	{"cafe", CategoryFood},
	{"street food", CategoryFood},
	{"shopping", CategoryShopping},
	{"mall", CategoryShopping},
	{"arcade", CategoryShopping},
	{"tour", CategoryTour},
	{"cruise", CategoryTour},
	{"studio", CategoryEntertainment},
	{"show", CategoryEntertainment},
	{"station", CategoryTransport},
	{"airport", CategoryTransport},
	{"crossing", CategoryLandmark},
	{"bridge", CategoryLandmark},
	{"memorial", CategoryLandmark},
	{"gate", CategoryLandmark},
}

var validCategories = func() map[ActivityCategory]bool {
	m := make(map[ActivityCategory]bool)
	for _, c := range []ActivityCategory{
		CategoryLandmark, CategoryTemple, CategoryShrine, CategoryCastle, CategoryMuseum,
		CategoryPark, CategoryViewpoint, CategoryFood, CategoryShopping, CategoryNightlife,
		CategoryOnsen, CategoryHiking, CategoryTour, CategoryEntertainment, CategoryTransport,
		CategoryOther,
	} {
		m[c] = true
	}
	return m
}()

// ParseCategory maps a free-form category label to a known category
func ParseCategory(s string) ActivityCategory {
	c := ActivityCategory(strings.ToLower(strings.TrimSpace(s)))
	if validCategories[c] {
		return c
	}
	return CategoryFromText(s)
}

// CategoryFromText infers a category from free text using the keyword table
func CategoryFromText(text string) ActivityCategory {
	lower := " " + strings.ToLower(text) + " "
	for _, ck := range categoryKeywords {
		if strings.Contains(lower, ck.keyword) {
			return ck.category
		}
	}
	return CategoryOther
}
