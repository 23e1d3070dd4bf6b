package fs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"ilfeat/internal/domain"
)

// DefaultRatio is the cation:anion ratio assumed when a row gives none.
const DefaultRatio = 1.0

// Record is one dataset row. Rows that cannot be read carry Err instead of
// failing the whole file.
type Record struct {
	Source      string
	Line        int
	Cation      string
	Anion       string
	IonicLiquid string
	Mixture     domain.Mixture
	Err         error
}

// ReadDataset reads a CSV file whose header names either cation and anion
// columns or a single ionic_liquid column, plus an optional ratio column.
func ReadDataset(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	records, err := ParseDataset(f, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func ParseDataset(r io.Reader, source string) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	_, hasCation := cols["cation"]
	_, hasAnion := cols["anion"]
	_, hasIL := cols["ionic_liquid"]
	if !(hasCation && hasAnion) && !hasIL {
		return nil, errors.New("header needs cation and anion columns or an ionic_liquid column")
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return norm.NFC.String(strings.TrimSpace(row[i]))
	}

	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line, _ := cr.FieldPos(0)
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out = append(out, Record{Source: source, Line: perr.Line, Err: err})
				continue
			}
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}

		rec := Record{
			Source:      source,
			Line:        line,
			Cation:      cell(row, "cation"),
			Anion:       cell(row, "anion"),
			IonicLiquid: cell(row, "ionic_liquid"),
			Mixture:     domain.Mixture{"ratio": DefaultRatio},
		}
		if raw := cell(row, "ratio"); raw != "" {
			ratio, err := strconv.ParseFloat(raw, 64)
			if err != nil || ratio <= 0 {
				rec.Err = fmt.Errorf("line %d: invalid ratio %q", line, raw)
			} else {
				rec.Mixture["ratio"] = ratio
			}
		}
		if rec.Err == nil && rec.IonicLiquid == "" && (rec.Cation == "" || rec.Anion == "") {
			rec.Err = fmt.Errorf("line %d: missing cation or anion", line)
		}
		out = append(out, rec)
	}
	return out, nil
}
