// Package marketdata loads bars and signals from CSV files for the cmd
// binaries. Files must have a header row; dates are YYYY-MM-DD and are
// interpreted as UTC midnights.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"backtest-lab/internal/domain"
)

const dateLayout = "2006-01-02"

// LoadBarsCSV reads bars for one symbol from a CSV file with columns
// date,open,high,low,close,volume. The returned bars are validated and
// strictly date-ascending.
func LoadBarsCSV(path, symbol string) ([]*domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer f.Close()

	bars, err := ReadBars(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("reading CSV %s: %w", path, err)
	}
	return bars, nil
}

// ReadBars parses bars from CSV content.
func ReadBars(r io.Reader, symbol string) ([]*domain.Bar, error) {
	records, err := readRecords(r, 6, "date,open,high,low,close,volume")
	if err != nil {
		return nil, err
	}

	bars := make([]*domain.Bar, 0, len(records))
	for i, row := range records {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad date %q: %w", i+2, row[0], err)
		}
		values := make([]float64, 5)
		for j := 1; j < 6; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad number %q: %w", i+2, row[j], err)
			}
			values[j-1] = v
		}
		bars = append(bars, &domain.Bar{
			Symbol: symbol,
			Date:   date.UTC(),
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// LoadSignalsCSV reads signal rows from a CSV file with columns
// date,signal[,suggested_size][,strength][,reason]. Optional columns may be
// left empty per row.
func LoadSignalsCSV(path string) ([]*domain.SignalRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer f.Close()

	signals, err := ReadSignals(f)
	if err != nil {
		return nil, fmt.Errorf("reading CSV %s: %w", path, err)
	}
	return signals, nil
}

// ReadSignals parses signal rows from CSV content.
func ReadSignals(r io.Reader) ([]*domain.SignalRow, error) {
	records, err := readRecords(r, 2, "date,signal")
	if err != nil {
		return nil, err
	}

	signals := make([]*domain.SignalRow, 0, len(records))
	for i, row := range records {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad date %q: %w", i+2, row[0], err)
		}
		value, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad signal %q: %w", i+2, row[1], err)
		}

		sig := &domain.SignalRow{
			Date:   date.UTC(),
			Signal: domain.Signal(value),
		}
		if len(row) > 2 {
			if sig.SuggestedPositionSize, err = optionalFloat(row[2]); err != nil {
				return nil, fmt.Errorf("row %d: bad suggested size %q: %w", i+2, row[2], err)
			}
		}
		if len(row) > 3 {
			if sig.Strength, err = optionalFloat(row[3]); err != nil {
				return nil, fmt.Errorf("row %d: bad strength %q: %w", i+2, row[3], err)
			}
		}
		if len(row) > 4 {
			sig.TriggerReason = strings.TrimSpace(row[4])
		}

		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// readRecords reads all data rows, skipping the header, and checks a minimum
// column count.
func readRecords(r io.Reader, minCols int, wantHeader string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file, expected header %s", wantHeader)
	}
	for i, row := range records[1:] {
		if len(row) < minCols {
			return nil, fmt.Errorf("row %d: expected at least %d columns (%s), got %d",
				i+2, minCols, wantHeader, len(row))
		}
	}
	return records[1:], nil
}

func optionalFloat(field string) (*float64, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
