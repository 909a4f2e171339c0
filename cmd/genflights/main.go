// Command genflights generates a deterministic mock flight weather CSV for
// local runs and test fixtures. Humidity values follow three loose bands so
// the classifier has real clusters to find, and a fraction of rows carry
// missing or NaN humidity the way the upstream feed does.
//
// Usage:
//
//	go run ./cmd/genflights -out flight_weather.csv -rows 5000 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

var (
	tails    = []string{"N100AA", "N200BB", "N300CC", "N400DD", "N500EE", "N600FF", "N700GG", "N800HH"}
	airports = []string{"JFK", "LAX", "ORD", "SEA", "ATL", "DFW", "DEN", "MIA"}

	// Band centers for the three humidity regimes the classifier should
	// recover as Good/Moderate/Bad.
	bands = []float64{25, 55, 85}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "flight_weather.csv", "output CSV path")
	rows := flag.Int("rows", 5000, "number of data rows")
	seed := flag.Int64("seed", 42, "rng seed")
	missing := flag.Float64("missing", 0.03, "fraction of rows with missing humidity")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"TAIL_NUM", "ORIGIN", "DEST", "YEAR", "MONTH", "DAY_OF_MONTH", "RelativeHumidityOrigin"}
	if err := w.Write(header); err != nil {
		return err
	}

	weekCounts := map[int]int{}
	var missingCount int

	for i := 0; i < *rows; i++ {
		tail := tails[rng.Intn(len(tails))]
		origin := airports[rng.Intn(len(airports))]
		dest := airports[rng.Intn(len(airports))]
		for dest == origin {
			dest = airports[rng.Intn(len(airports))]
		}

		month := 1 + rng.Intn(12)
		day := 1 + rng.Intn(28)
		weekCounts[domain.WeekOfMonth(day)]++

		humidity := formatHumidity(rng, *missing, &missingCount)

		record := []string{
			tail,
			origin,
			dest,
			"2024",
			strconv.Itoa(month),
			strconv.Itoa(day),
			humidity,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	log.Printf("wrote %d rows to %s", *rows, *out)
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d\n", *rows)
	fmt.Printf("Missing humidity: %d\n", missingCount)
	fmt.Printf("By week: 1=%d, 2=%d, 3=%d, 4=%d\n",
		weekCounts[1], weekCounts[2], weekCounts[3], weekCounts[4])
	return nil
}

// formatHumidity draws from one of the three bands, or yields a missing
// value: half the misses are empty fields, half the literal "NaN".
func formatHumidity(rng *rand.Rand, missing float64, missingCount *int) string {
	if rng.Float64() < missing {
		*missingCount++
		if rng.Intn(2) == 0 {
			return ""
		}
		return "NaN"
	}
	center := bands[rng.Intn(len(bands))]
	v := center + rng.NormFloat64()*6
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return strconv.FormatFloat(domain.RoundHumidity(v), 'f', 2, 64)
}
