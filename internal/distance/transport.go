package distance

import (
	"fmt"
	"math"

	"itinerary-optimizer/internal/models"
)

// Transport modes returned by TransportEstimateFor
const (
	ModeWalk       = "walk"
	ModeShortTrain = "walk/short-train"
	ModeLocalTrain = "local-train"
	ModeExpress    = "express-train"
)

// Fare table, in the trip's currency units
const (
	MinimumFare      = 170.0
	LocalFarePerKm   = 20.0
	LocalFareCap     = 400.0
	ExpressBaseFare  = 400.0
	ExpressFarePerKm = 40.0
	ExpressFareCap   = 15000.0
)

// TransportBand is the semantic distance band of a same-day hop
type TransportBand int

const (
	BandWalk TransportBand = iota
	BandLocalTrain
	BandSubway
	BandExpress
	BandShinkansen
)

// Band boundaries in km used when classifying hops
const (
	WalkBandKm       = 2.0
	LocalTrainBandKm = 5.0
	SubwayBandKm     = 10.0
	ShinkansenBandKm = 50.0
)

func (b TransportBand) String() string {
	switch b {
	case BandWalk:
		return "WALK"
	case BandLocalTrain:
		return "LOCAL_TRAIN"
	case BandSubway:
		return "SUBWAY"
	case BandExpress:
		return "EXPRESS"
	default:
		return "SHINKANSEN"
	}
}

func (b TransportBand) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *TransportBand) UnmarshalText(text []byte) error {
	for band := BandWalk; band <= BandShinkansen; band++ {
		if band.String() == string(text) {
			*b = band
			return nil
		}
	}
	return fmt.Errorf("unknown transport band %q", text)
}

// ClassifyHop maps a hop distance to its transport band
func ClassifyHop(km float64) TransportBand {
	switch {
	case km <= WalkBandKm:
		return BandWalk
	case km <= LocalTrainBandKm:
		return BandLocalTrain
	case km <= SubwayBandKm:
		return BandSubway
	case km <= ShinkansenBandKm:
		return BandExpress
	default:
		return BandShinkansen
	}
}

// TransportEstimateFor estimates minutes, mode and fare for a transfer of the given length
func TransportEstimateFor(km float64) models.TransportEstimate {
	if km < 0 || math.IsNaN(km) {
		km = 0
	}

	est := models.TransportEstimate{DistanceKm: km}
	switch {
	case km < 0.5:
		est.Mode = ModeWalk
		est.Minutes = int(math.Ceil(km * 12))
		est.Cost = 0
	case km < 2:
		est.Mode = ModeShortTrain
		est.Minutes = int(math.Ceil(km*10)) + 5
		est.Cost = MinimumFare
	case km < 10:
		est.Mode = ModeLocalTrain
		est.Minutes = int(math.Ceil(km*3)) + 10
		est.Cost = math.Min(math.Round(MinimumFare+LocalFarePerKm*km), LocalFareCap)
	default:
		est.Mode = ModeExpress
		est.Minutes = int(math.Ceil(km*2)) + 15
		est.Cost = math.Min(math.Round(ExpressBaseFare+ExpressFarePerKm*km), ExpressFareCap)
	}
	return est
}

// ModeRank orders transport modes from cheapest to most expensive band
func ModeRank(mode string) int {
	switch mode {
	case ModeWalk:
		return 0
	case ModeShortTrain:
		return 1
	case ModeLocalTrain:
		return 2
	default:
		return 3
	}
}
