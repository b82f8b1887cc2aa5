package cities

import "itinerary-optimizer/internal/models"

// BoundingBox is an inclusive lat/lng rectangle
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether the point lies inside the box
func (b BoundingBox) Contains(c models.Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// Zone is a well-known district of a city
type Zone struct {
	ID       string
	Name     string
	Centroid models.Coordinates
	RadiusKm float64
	Keywords []string
}

// City describes how a city is recognised
type City struct {
	Name     string
	Aliases  []string
	Keywords []string
	Box      BoundingBox
	Zones    []Zone
}

// Catalog is the set of known cities. Order matters: bounding boxes are
// checked in order and ties between keyword matches go to the earlier city.
type Catalog struct {
	Cities    []City
	Landmarks []string
}

// DefaultCatalog returns the built-in catalog of Japanese destinations
func DefaultCatalog() *Catalog {
	return &Catalog{
		Cities:    defaultCities,
		Landmarks: defaultLandmarks,
	}
}

// City returns the catalog entry with the given canonical name
func (c *Catalog) City(name string) (*City, bool) {
	for i := range c.Cities {
		if c.Cities[i].Name == name {
			return &c.Cities[i], true
		}
	}
	return nil, false
}

var defaultLandmarks = []string{
	"senso-ji", "sensoji", "fushimi inari", "kinkaku", "golden pavilion", "tokyo tower",
	"skytree", "osaka castle", "todai-ji", "todaiji", "itsukushima", "peace memorial",
	"kiyomizu", "meiji jingu", "meiji shrine", "shibuya crossing", "bamboo grove",
	"dotonbori", "mount fuji", "mt. fuji", "great buddha", "daibutsu", "toshogu",
	"kenroku-en", "kenrokuen", "himeji", "imperial palace", "nijo castle", "ginkaku",
}

var defaultCities = []City{
	{
		Name:     "Tokyo",
		Aliases:  []string{"tokyo", "tokio", "tokyo-to", "tōkyō", "edo"},
		Keywords: []string{"tokyo", "shibuya", "shinjuku", "asakusa", "akihabara", "harajuku", "ginza", "roppongi", "ueno", "odaiba", "tsukiji", "ikebukuro", "senso-ji", "sensoji", "skytree", "meiji jingu", "toyosu", "shimokitazawa"},
		Box:      BoundingBox{MinLat: 35.50, MaxLat: 35.90, MinLng: 139.55, MaxLng: 139.95},
		Zones: []Zone{
			{ID: "tokyo-shibuya", Name: "Shibuya", Centroid: models.Coordinates{Lat: 35.6595, Lng: 139.7005}, RadiusKm: 1.5, Keywords: []string{"shibuya", "harajuku", "omotesando", "meiji"}},
			{ID: "tokyo-shinjuku", Name: "Shinjuku", Centroid: models.Coordinates{Lat: 35.6938, Lng: 139.7034}, RadiusKm: 1.5, Keywords: []string{"shinjuku", "golden gai", "kabukicho"}},
			{ID: "tokyo-asakusa", Name: "Asakusa", Centroid: models.Coordinates{Lat: 35.7148, Lng: 139.7967}, RadiusKm: 1.5, Keywords: []string{"asakusa", "senso-ji", "sensoji", "skytree", "kappabashi"}},
			{ID: "tokyo-ueno", Name: "Ueno & Akihabara", Centroid: models.Coordinates{Lat: 35.7075, Lng: 139.7745}, RadiusKm: 1.5, Keywords: []string{"ueno", "akihabara", "ameyoko", "yanaka"}},
			{ID: "tokyo-ginza", Name: "Ginza & Marunouchi", Centroid: models.Coordinates{Lat: 35.6762, Lng: 139.7650}, RadiusKm: 1.5, Keywords: []string{"ginza", "tsukiji", "marunouchi", "imperial palace", "tokyo station"}},
			{ID: "tokyo-bay", Name: "Odaiba & Bay", Centroid: models.Coordinates{Lat: 35.6267, Lng: 139.7760}, RadiusKm: 2.5, Keywords: []string{"odaiba", "toyosu", "teamlab"}},
		},
	},
	{
		Name:     "Yokohama",
		Aliases:  []string{"yokohama", "yokohama-shi"},
		Keywords: []string{"yokohama", "minato mirai", "sankeien", "cup noodles museum"},
		Box:      BoundingBox{MinLat: 35.35, MaxLat: 35.4999, MinLng: 139.55, MaxLng: 139.70},
	},
	{
		Name:     "Kamakura",
		Aliases:  []string{"kamakura"},
		Keywords: []string{"kamakura", "great buddha", "daibutsu", "hasedera", "hase-dera", "enoshima", "tsurugaoka"},
		Box:      BoundingBox{MinLat: 35.28, MaxLat: 35.3499, MinLng: 139.45, MaxLng: 139.60},
	},
	{
		Name:     "Hakone",
		Aliases:  []string{"hakone", "hakone-machi"},
		Keywords: []string{"hakone", "owakudani", "lake ashi", "ashinoko", "gora"},
		Box:      BoundingBox{MinLat: 35.17, MaxLat: 35.30, MinLng: 138.95, MaxLng: 139.15},
	},
	{
		Name:     "Nikko",
		Aliases:  []string{"nikko", "nikkō"},
		Keywords: []string{"nikko", "toshogu", "kegon", "chuzenji"},
		Box:      BoundingBox{MinLat: 36.70, MaxLat: 36.85, MinLng: 139.45, MaxLng: 139.75},
	},
	{
		Name:     "Kanazawa",
		Aliases:  []string{"kanazawa"},
		Keywords: []string{"kanazawa", "kenroku-en", "kenrokuen", "higashi chaya", "omicho"},
		Box:      BoundingBox{MinLat: 36.50, MaxLat: 36.62, MinLng: 136.60, MaxLng: 136.72},
	},
	{
		Name:     "Nagoya",
		Aliases:  []string{"nagoya", "nagoya-shi"},
		Keywords: []string{"nagoya", "atsuta", "osu kannon", "sakae"},
		Box:      BoundingBox{MinLat: 35.05, MaxLat: 35.25, MinLng: 136.80, MaxLng: 137.05},
	},
	{
		Name:     "Kyoto",
		Aliases:  []string{"kyoto", "kioto", "kyōto", "kyoto-shi", "kyo"},
		Keywords: []string{"kyoto", "fushimi inari", "kinkaku", "golden pavilion", "arashiyama", "gion", "kiyomizu", "ginkaku", "nishiki", "philosopher", "nijo", "pontocho", "higashiyama", "sanjusangendo", "tenryu-ji"},
		Box:      BoundingBox{MinLat: 34.90, MaxLat: 35.12, MinLng: 135.65, MaxLng: 135.85},
		Zones: []Zone{
			{ID: "kyoto-higashiyama", Name: "Higashiyama", Centroid: models.Coordinates{Lat: 34.9980, Lng: 135.7800}, RadiusKm: 1.5, Keywords: []string{"higashiyama", "gion", "kiyomizu", "yasaka", "ninenzaka", "sannenzaka"}},
			{ID: "kyoto-arashiyama", Name: "Arashiyama", Centroid: models.Coordinates{Lat: 35.0094, Lng: 135.6668}, RadiusKm: 2.0, Keywords: []string{"arashiyama", "bamboo grove", "tenryu-ji", "sagano"}},
			{ID: "kyoto-fushimi", Name: "Fushimi", Centroid: models.Coordinates{Lat: 34.9671, Lng: 135.7727}, RadiusKm: 1.5, Keywords: []string{"fushimi"}},
			{ID: "kyoto-kita", Name: "Kitayama", Centroid: models.Coordinates{Lat: 35.0394, Lng: 135.7292}, RadiusKm: 1.5, Keywords: []string{"kinkaku", "golden pavilion", "ryoan-ji", "ryoanji"}},
			{ID: "kyoto-downtown", Name: "Downtown Kyoto", Centroid: models.Coordinates{Lat: 35.0050, Lng: 135.7650}, RadiusKm: 1.2, Keywords: []string{"nishiki", "pontocho", "kawaramachi", "teramachi"}},
		},
	},
	{
		Name:     "Nara",
		Aliases:  []string{"nara", "nara-shi"},
		Keywords: []string{"nara", "todai-ji", "todaiji", "kasuga", "naramachi", "kofuku-ji"},
		Box:      BoundingBox{MinLat: 34.65, MaxLat: 34.72, MinLng: 135.78, MaxLng: 135.86},
	},
	{
		Name:     "Osaka",
		Aliases:  []string{"osaka", "ōsaka", "osaka-shi", "osaka city"},
		Keywords: []string{"osaka", "dotonbori", "namba", "umeda", "shinsekai", "kuromon", "tempozan", "shinsaibashi", "tsutenkaku", "universal studios"},
		Box:      BoundingBox{MinLat: 34.55, MaxLat: 34.80, MinLng: 135.40, MaxLng: 135.60},
		Zones: []Zone{
			{ID: "osaka-namba", Name: "Namba & Dotonbori", Centroid: models.Coordinates{Lat: 34.6687, Lng: 135.5013}, RadiusKm: 1.2, Keywords: []string{"namba", "dotonbori", "shinsaibashi", "kuromon", "amerikamura"}},
			{ID: "osaka-umeda", Name: "Umeda", Centroid: models.Coordinates{Lat: 34.7025, Lng: 135.4959}, RadiusKm: 1.2, Keywords: []string{"umeda", "kita-ku", "hep five"}},
			{ID: "osaka-castle", Name: "Osaka Castle", Centroid: models.Coordinates{Lat: 34.6873, Lng: 135.5262}, RadiusKm: 1.2, Keywords: []string{"osaka castle", "osakajo"}},
			{ID: "osaka-tennoji", Name: "Tennoji & Shinsekai", Centroid: models.Coordinates{Lat: 34.6525, Lng: 135.5063}, RadiusKm: 1.2, Keywords: []string{"tennoji", "shinsekai", "tsutenkaku", "abeno"}},
		},
	},
	{
		Name:     "Kobe",
		Aliases:  []string{"kobe", "kōbe"},
		Keywords: []string{"kobe", "kitano", "arima", "harborland", "nunobiki"},
		Box:      BoundingBox{MinLat: 34.64, MaxLat: 34.80, MinLng: 135.10, MaxLng: 135.30},
	},
	{
		Name:     "Hiroshima",
		Aliases:  []string{"hiroshima", "hiroshima-shi"},
		Keywords: []string{"hiroshima", "miyajima", "itsukushima", "peace memorial", "okonomimura"},
		Box:      BoundingBox{MinLat: 34.25, MaxLat: 34.45, MinLng: 132.25, MaxLng: 132.55},
	},
}
