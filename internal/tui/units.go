package tui

import (
	"fmt"

	"runstream/internal/config"
)

const (
	metersPerMile = 1609.34
	metersPerKm   = 1000.0
)

// Units provides unit conversion and formatting based on user preferences
type Units struct {
	cfg config.DisplayConfig
}

// NewUnits creates a new Units helper with the given display config
func NewUnits(cfg config.DisplayConfig) Units {
	return Units{cfg: cfg}
}

// FormatDistance formats a distance in meters to the user's preferred unit
func (u Units) FormatDistance(meters float64) string {
	if u.cfg.DistanceUnit == "mi" {
		return fmt.Sprintf("%.1f mi", meters/metersPerMile)
	}
	return fmt.Sprintf("%.1f km", meters/metersPerKm)
}

// FormatPace formats pace from total seconds and meters to the user's preferred unit
func (u Units) FormatPace(seconds int, meters float64) string {
	if meters <= 0 || seconds <= 0 {
		return "-"
	}
	return formatClock(u.PaceValue(float64(seconds)/(meters/metersPerKm)) * 60)
}

// FormatPaceSKm formats a pace given in seconds per kilometer
func (u Units) FormatPaceSKm(secPerKm *float64) string {
	if secPerKm == nil || *secPerKm <= 0 {
		return "-"
	}
	return formatClock(u.PaceValue(*secPerKm)*60) + "/" + u.paceDistanceLabel()
}

// PaceValue converts seconds per kilometer to minutes in the pace unit
func (u Units) PaceValue(secPerKm float64) float64 {
	if u.cfg.PaceUnit == "min/mi" {
		return secPerKm * metersPerMile / metersPerKm / 60
	}
	return secPerKm / 60
}

// PaceLabel returns the pace unit label ("min/mi" or "min/km")
func (u Units) PaceLabel() string {
	if u.cfg.PaceUnit == "min/mi" {
		return "min/mi"
	}
	return "min/km"
}

func (u Units) paceDistanceLabel() string {
	if u.cfg.PaceUnit == "min/mi" {
		return "mi"
	}
	return "km"
}

func formatClock(seconds float64) string {
	s := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
