// Package physics resolves instrument definitions against a catalog and
// checks resolved pitches against each instrument's playable range.
package physics

import (
	_ "embed"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/tenuto-go/internal/score"
)

//go:embed instruments.yaml
var defaultCatalogYAML []byte

// Instrument is one catalog preset. Keys are MIDI note numbers of the
// sounding range.
type Instrument struct {
	Preset    string
	Name      string
	Low       int
	High      int
	Transpose int
	Patch     int
	Tuning    []int
}

type instrumentYAML struct {
	Name      string   `yaml:"name"`
	Low       string   `yaml:"low"`
	High      string   `yaml:"high"`
	Transpose int      `yaml:"transpose"`
	Patch     int      `yaml:"patch"`
	Tuning    []string `yaml:"tuning"`
}

type catalogYAML struct {
	Instruments map[string]instrumentYAML `yaml:"instruments"`
}

// Catalog maps preset names to instruments. Lookups are case-insensitive.
type Catalog struct {
	presets map[string]Instrument
}

// DefaultCatalog returns the built-in presets.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a YAML catalog from r.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return ParseCatalog(data)
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer f.Close()
	c, err := LoadCatalog(f)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %s", path)
	}
	return c, nil
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	c := &Catalog{presets: make(map[string]Instrument, len(doc.Instruments))}
	for name, raw := range doc.Instruments {
		inst, err := raw.instrument(name)
		if err != nil {
			return nil, errors.Wrapf(err, "preset %q", name)
		}
		c.presets[strings.ToLower(name)] = inst
	}
	return c, nil
}

func (y instrumentYAML) instrument(preset string) (Instrument, error) {
	inst := Instrument{
		Preset:    preset,
		Name:      y.Name,
		Low:       0,
		High:      127,
		Transpose: y.Transpose,
		Patch:     y.Patch,
	}
	if y.Low != "" {
		p, err := score.ParsePitch(y.Low)
		if err != nil {
			return Instrument{}, errors.Wrap(err, "low")
		}
		inst.Low = p.Key()
	}
	if y.High != "" {
		p, err := score.ParsePitch(y.High)
		if err != nil {
			return Instrument{}, errors.Wrap(err, "high")
		}
		inst.High = p.Key()
	}
	if inst.Low > inst.High {
		return Instrument{}, errors.Errorf("range %s..%s is inverted", y.Low, y.High)
	}
	if inst.Patch < 0 || inst.Patch > 127 {
		return Instrument{}, errors.Errorf("patch %d outside 0..127", inst.Patch)
	}
	for _, s := range y.Tuning {
		p, err := score.ParsePitch(s)
		if err != nil {
			return Instrument{}, errors.Wrap(err, "tuning")
		}
		inst.Tuning = append(inst.Tuning, p.Key())
	}
	return inst, nil
}

// Lookup finds a preset by name.
func (c *Catalog) Lookup(preset string) (Instrument, bool) {
	if c == nil {
		return Instrument{}, false
	}
	inst, ok := c.presets[strings.ToLower(preset)]
	return inst, ok
}

// Presets lists the preset names in sorted order.
func (c *Catalog) Presets() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge returns a catalog holding c's presets overridden by o's.
func (c *Catalog) Merge(o *Catalog) *Catalog {
	out := &Catalog{presets: make(map[string]Instrument)}
	for _, src := range []*Catalog{c, o} {
		if src == nil {
			continue
		}
		for k, v := range src.presets {
			out.presets[k] = v
		}
	}
	return out
}
