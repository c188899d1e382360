package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/samplegeo/atlas-cli/internal/model"
)

// csvAdapter parses a headered CSV export. The field names and metadata
// builder vary per registry; the row handling does not.
type csvAdapter struct {
	kind     Kind
	system   model.SystemName
	idField  string
	latField string
	lonField string
	metadata func(row map[string]string) map[string]any
}

func (a csvAdapter) Kind() Kind                   { return a.kind }
func (a csvAdapter) SystemName() model.SystemName { return a.system }

func (a csvAdapter) Parse(ctx context.Context, r io.Reader) ([]model.Record, int, error) {
	log := zap.L().With(zap.String("component", "source"), zap.String("kind", string(a.kind)))

	reader := newCSVReader(r)

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			log.Warn("empty source file")
			return nil, 0, nil
		}
		return nil, 0, eris.Wrapf(err, "source: %s: read header", a.kind)
	}

	var records []model.Record
	skipped := 0
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, eris.Wrapf(err, "source: %s: cancelled", a.kind)
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			// A single unparseable row does not abort the file.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Debug("skipping unparseable row", zap.Int("line", line), zap.Error(err))
				skipped++
				continue
			}
			return nil, 0, eris.Wrapf(err, "source: %s: read row", a.kind)
		}

		mapped := mapRow(headers, row)
		lon, lonOK := floatField(mapped[a.lonField])
		lat, latOK := floatField(mapped[a.latField])
		if !lonOK || !latOK || !model.ValidCoordinates(lon, lat) {
			log.Debug("skipping row without usable coordinates",
				zap.Int("line", line),
				zap.String("id", mapped[a.idField]),
			)
			skipped++
			continue
		}

		records = append(records, model.Record{
			DatasetID:  strings.TrimSpace(mapped[a.idField]),
			SystemName: a.system,
			Longitude:  lon,
			Latitude:   lat,
			Metadata:   a.metadata(mapped),
		})
	}

	return records, skipped, nil
}

// newCSVReader wraps r so a leading UTF-8 BOM is stripped, and relaxes the
// per-record field count since real exports have ragged rows.
func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	reader.FieldsPerRecord = -1
	return reader
}

// mapRow pairs each header with the corresponding value in the row.
// If the row has fewer columns than headers, missing values become empty
// strings.
func mapRow(headers []string, row []string) map[string]string {
	result := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			result[h] = row[i]
		} else {
			result[h] = ""
		}
	}
	return result
}
