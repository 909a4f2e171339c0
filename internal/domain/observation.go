package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// RawObservation is one row of the flight weather feed. It is ephemeral:
// produced by a source, consumed once by the aggregator.
type RawObservation struct {
	TailNum string `json:"TAIL_NUM"`
	Origin  string `json:"ORIGIN"`
	Dest    string `json:"DEST"`
	Year    int    `json:"YEAR"`
	Month   int    `json:"MONTH"`
	Day     int    `json:"DAY_OF_MONTH"`

	// Humidity is the relative humidity at the origin airport.
	// It is only meaningful when HumidityValid is true.
	Humidity      float64 `json:"RelativeHumidityOrigin"`
	HumidityValid bool    `json:"-"`
}

// ParseHumidity applies the single missing-value convention: empty fields,
// the literal "NaN" in any case, and unparseable floats are all missing.
func ParseHumidity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// WeekOfMonth maps a day of month onto the fixed four-bucket partition.
// Days past 31 cannot occur in valid dates; anything above 22 is week 4.
func WeekOfMonth(day int) int {
	switch {
	case day <= 7:
		return 1
	case day <= 15:
		return 2
	case day <= 22:
		return 3
	default:
		return 4
	}
}

// Date synthesizes the observation's calendar date in UTC.
func (o RawObservation) Date() time.Time {
	return time.Date(o.Year, time.Month(o.Month), o.Day, 0, 0, 0, 0, time.UTC)
}

// RoundHumidity rounds to two decimal places, half to even.
func RoundHumidity(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
