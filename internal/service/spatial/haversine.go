// Package spatial implements driver discovery for dispatch: ranking online
// drivers by great-circle distance from a pickup point and filtering by
// vehicle class and radius.
package spatial

import (
	"math"
	"time"

	"github.com/nomadcore/triphail/internal/domain/types"
)

const (
	EarthRadiusKm = 6371.0

	DefaultSpeedEconomyKmh = 30.0
	DefaultSpeedPremiumKmh = 40.0
	DefaultSpeedXLKmh      = 35.0
)

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineDistanceKm returns the great-circle distance, in kilometers,
// between two lat/lon points.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := degreesToRadians(lat1)
	lon1Rad := degreesToRadians(lon1)
	lat2Rad := degreesToRadians(lat2)
	lon2Rad := degreesToRadians(lon2)

	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	a := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Pow(math.Sin(deltaLon/2), 2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func averageSpeedKmh(class types.VehicleClass) float64 {
	switch class {
	case types.ClassXL:
		return DefaultSpeedXLKmh
	case types.ClassPremium:
		return DefaultSpeedPremiumKmh
	default:
		return DefaultSpeedEconomyKmh
	}
}

// EstimatedDurationMinutes derives a travel-time estimate for a distance,
// assuming the average road speed for the given vehicle class.
func EstimatedDurationMinutes(distanceKm float64, class types.VehicleClass) int {
	hours := distanceKm / averageSpeedKmh(class)
	return int(math.Round(hours * 60))
}

// EstimatedArrival projects a future timestamp from now given a distance and
// vehicle class's average speed.
func EstimatedArrival(now time.Time, distanceKm float64, class types.VehicleClass) time.Time {
	hours := distanceKm / averageSpeedKmh(class)
	return now.Add(time.Duration(hours * float64(time.Hour)))
}
