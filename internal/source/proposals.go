package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/samplegeo/atlas-cli/internal/model"
)

// proposalAdapter parses the sampling-proposal geofence export, a JSON
// array of objects each carrying a proposal_id and a coordinate pair.
type proposalAdapter struct{}

func (proposalAdapter) Kind() Kind                   { return KindProposals }
func (proposalAdapter) SystemName() model.SystemName { return model.SystemEMSL }

func (proposalAdapter) Parse(ctx context.Context, r io.Reader) ([]model.Record, int, error) {
	log := zap.L().With(zap.String("component", "source"), zap.String("kind", string(KindProposals)))

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		if errors.Is(err, io.EOF) {
			log.Warn("empty source file")
			return nil, 0, nil
		}
		return nil, 0, eris.Wrapf(err, "source: %s: decode", KindProposals)
	}
	if len(items) == 0 {
		log.Warn("empty source file")
		return nil, 0, nil
	}

	var records []model.Record
	skipped := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, 0, eris.Wrapf(err, "source: %s: cancelled", KindProposals)
		}

		lon, lonOK := floatField(item["longitude"])
		lat, latOK := floatField(item["latitude"])
		if !lonOK || !latOK || !model.ValidCoordinates(lon, lat) {
			log.Debug("skipping item without usable coordinates",
				zap.Int("index", i),
				zap.String("id", stringField(item["proposal_id"])),
			)
			skipped++
			continue
		}

		md := map[string]any{"source": "project_locations"}
		if v := stringField(item["sampling_set"]); v != "" {
			md["sampling_set"] = v
		}
		if v := stringField(item["description"]); v != "" {
			md["description"] = v
		}

		records = append(records, model.Record{
			DatasetID:  stringField(item["proposal_id"]),
			SystemName: model.SystemEMSL,
			Longitude:  lon,
			Latitude:   lat,
			Metadata:   md,
		})
	}

	return records, skipped, nil
}

// stringField renders an identifier that may arrive as a JSON string or
// number.
func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
