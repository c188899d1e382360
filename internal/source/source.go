// Package source converts raw registry exports into canonical location
// records. Each registry gets one adapter; adapters are looked up by kind
// from a fixed table.
package source

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/samplegeo/atlas-cli/internal/model"
)

// Kind identifies a supported registry export format.
type Kind string

const (
	KindProposals      Kind = "proposals"
	KindPackages       Kind = "packages"
	KindBiosamples     Kind = "biosamples"
	KindGoldBiosamples Kind = "gold_biosamples"
	KindGoldOrganisms  Kind = "gold_organisms"
)

// Adapter converts one registry's raw export into canonical records.
type Adapter interface {
	Kind() Kind
	SystemName() model.SystemName

	// Parse reads the whole input and returns the valid records plus the
	// number of rows skipped for missing or malformed coordinates. A bad
	// row never fails the parse; only an unreadable or fundamentally
	// malformed input returns an error.
	Parse(ctx context.Context, r io.Reader) ([]model.Record, int, error)
}

var adapters = map[Kind]Adapter{
	KindProposals: proposalAdapter{},
	KindPackages: csvAdapter{
		kind:     KindPackages,
		system:   model.SystemESSDive,
		idField:  "package_id",
		latField: "centroid_latitude",
		lonField: "centroid_longitude",
		metadata: packageMetadata,
	},
	KindBiosamples: csvAdapter{
		kind:     KindBiosamples,
		system:   model.SystemNMDC,
		idField:  "biosample_id",
		latField: "latitude",
		lonField: "longitude",
		metadata: taggedMetadata("NMDC-Biosample"),
	},
	KindGoldBiosamples: csvAdapter{
		kind:     KindGoldBiosamples,
		system:   model.SystemJGIBiosamples,
		idField:  "gold_id",
		latField: "latitude",
		lonField: "longitude",
		metadata: taggedMetadata("JGI-GOLD-Biosample"),
	},
	KindGoldOrganisms: csvAdapter{
		kind:     KindGoldOrganisms,
		system:   model.SystemJGIOrganism,
		idField:  "gold_id",
		latField: "latitude",
		lonField: "longitude",
		metadata: taggedMetadata("JGI-GOLD-Organism"),
	},
}

// ForKind returns the adapter for a source kind.
func ForKind(k Kind) (Adapter, error) {
	a, ok := adapters[k]
	if !ok {
		return nil, eris.Errorf("source: no adapter for kind %q", k)
	}
	return a, nil
}

// packageMetadata carries the provenance tag plus the export's leading
// index column when it holds an integer.
func packageMetadata(row map[string]string) map[string]any {
	md := map[string]any{"source": "ESS-DIVE"}
	for _, key := range []string{"", "Unnamed: 0"} {
		if v, ok := row[key]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				md["row_id"] = n
				break
			}
		}
	}
	return md
}

// taggedMetadata returns a metadata builder that only records the
// provenance tag.
func taggedMetadata(tag string) func(map[string]string) map[string]any {
	return func(map[string]string) map[string]any {
		return map[string]any{"source": tag}
	}
}

// floatField extracts a coordinate that may arrive as a JSON number, a
// json.Number, or a string.
func floatField(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
