package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

// Column names expected in the flight weather CSV header. Extra columns are
// ignored; missing ones make the whole feed unreadable.
const (
	colTailNum  = "TAIL_NUM"
	colOrigin   = "ORIGIN"
	colDest     = "DEST"
	colYear     = "YEAR"
	colMonth    = "MONTH"
	colDay      = "DAY_OF_MONTH"
	colHumidity = "RelativeHumidityOrigin"
)

var requiredColumns = []string{colTailNum, colOrigin, colDest, colYear, colMonth, colDay, colHumidity}

// CSVSource reads a flight weather CSV extract in fixed-size chunks.
// It implements ChunkSource.
type CSVSource struct {
	file      *os.File
	reader    *csv.Reader
	cols      map[string]int
	chunkSize int
	logger    *slog.Logger
	rowNum    int
}

// OpenCSV opens the extract, validates the header, and returns a chunked
// reader. A header missing any mandatory column fails with a
// domain.SchemaError before a single row is emitted.
func OpenCSV(path string, chunkSize int, logger *slog.Logger) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flight weather csv: %w", err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are handled per-field

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		f.Close()
		return nil, &domain.SchemaError{Missing: missing}
	}

	return &CSVSource{
		file:      f,
		reader:    r,
		cols:      cols,
		chunkSize: chunkSize,
		logger:    logger,
	}, nil
}

// Next reads up to chunkSize rows. Rows with malformed identifiers or dates
// are skipped with a warning; malformed humidity is kept as a missing value
// so the aggregator can drop it consistently.
func (s *CSVSource) Next(ctx context.Context) ([]domain.RawObservation, error) {
	chunk := make([]domain.RawObservation, 0, s.chunkSize)

	for len(chunk) < s.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			if len(chunk) == 0 {
				return nil, io.EOF
			}
			return chunk, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		s.rowNum++

		obs, ok := s.parseRow(row)
		if !ok {
			continue
		}
		chunk = append(chunk, obs)
	}

	return chunk, nil
}

func (s *CSVSource) parseRow(row []string) (domain.RawObservation, bool) {
	field := func(name string) string {
		i := s.cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	year, errY := strconv.Atoi(field(colYear))
	month, errM := strconv.Atoi(field(colMonth))
	day, errD := strconv.Atoi(field(colDay))
	if errY != nil || errM != nil || errD != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		s.logger.Warn("skipping row with malformed date", "row", s.rowNum)
		return domain.RawObservation{}, false
	}

	tail, origin, dest := field(colTailNum), field(colOrigin), field(colDest)
	if tail == "" || origin == "" || dest == "" {
		s.logger.Warn("skipping row with missing identifiers", "row", s.rowNum)
		return domain.RawObservation{}, false
	}

	humidity, valid := domain.ParseHumidity(field(colHumidity))

	return domain.RawObservation{
		TailNum:       tail,
		Origin:        origin,
		Dest:          dest,
		Year:          year,
		Month:         month,
		Day:           day,
		Humidity:      humidity,
		HumidityValid: valid,
	}, true
}

// Close releases the underlying file.
func (s *CSVSource) Close() error {
	return s.file.Close()
}
