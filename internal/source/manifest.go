package source

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Spec names one registry export inside the data directory.
type Spec struct {
	Kind     Kind   `yaml:"kind"`
	File     string `yaml:"file"`
	Large    bool   `yaml:"large,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// DefaultManifest lists the registry exports an ingest run looks for when
// no manifest file is given. The two GOLD exports are flagged large so
// they can be skipped on constrained runs.
func DefaultManifest() []Spec {
	return []Spec{
		{Kind: KindProposals, File: "latlon_project_ids.json"},
		{Kind: KindPackages, File: "ess_dive_packages.csv"},
		{Kind: KindBiosamples, File: "nmdc_biosample_geo_coordinates.csv"},
		{Kind: KindGoldBiosamples, File: "jgi_gold_biosample_geo.csv", Large: true},
		{Kind: KindGoldOrganisms, File: "jgi_gold_organism_geo.csv", Large: true},
	}
}

// LoadManifest reads a source manifest from a YAML file with a top-level
// "sources" key. Every entry must name a known kind and a file.
func LoadManifest(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read manifest %s", path)
	}

	var wrapper struct {
		Sources []Spec `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "source: parse manifest")
	}
	if len(wrapper.Sources) == 0 {
		return nil, eris.Errorf("source: manifest %s lists no sources", path)
	}
	for i, s := range wrapper.Sources {
		if _, err := ForKind(s.Kind); err != nil {
			return nil, eris.Wrapf(err, "source: manifest %s entry %d", path, i)
		}
		if s.File == "" {
			return nil, eris.Errorf("source: manifest %s entry %d has no file", path, i)
		}
	}
	return wrapper.Sources, nil
}
