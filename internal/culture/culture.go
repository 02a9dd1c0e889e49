// Package culture scores how well a gamification feature fits a cultural
// profile and suggests adapted framings. Everything here is deterministic:
// bad input lowers a score, it never fails a call.
package culture

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// Dimensions places a culture or a mechanic on six axes in [0,1].
type Dimensions struct {
	PowerDistance        float64 `yaml:"power_distance" json:"power_distance"`
	Individualism        float64 `yaml:"individualism" json:"individualism"`
	Competitiveness      float64 `yaml:"competitiveness" json:"competitiveness"`
	UncertaintyAvoidance float64 `yaml:"uncertainty_avoidance" json:"uncertainty_avoidance"`
	LongTermOrientation  float64 `yaml:"long_term_orientation" json:"long_term_orientation"`
	Indulgence           float64 `yaml:"indulgence" json:"indulgence"`
}

var dimensionNames = [6]string{
	"power_distance",
	"individualism",
	"competitiveness",
	"uncertainty_avoidance",
	"long_term_orientation",
	"indulgence",
}

func (d Dimensions) values() [6]float64 {
	return [6]float64{
		d.PowerDistance,
		d.Individualism,
		d.Competitiveness,
		d.UncertaintyAvoidance,
		d.LongTermOrientation,
		d.Indulgence,
	}
}

func fromValues(v [6]float64) Dimensions {
	return Dimensions{
		PowerDistance:        v[0],
		Individualism:        v[1],
		Competitiveness:      v[2],
		UncertaintyAvoidance: v[3],
		LongTermOrientation:  v[4],
		Indulgence:           v[5],
	}
}

func (d Dimensions) get(name string) (float64, bool) {
	for i, n := range dimensionNames {
		if n == name {
			return d.values()[i], true
		}
	}
	return 0, false
}

// clamped pins every value into [0,1]; NaN becomes the midpoint.
func (d Dimensions) clamped() Dimensions {
	v := d.values()
	for i := range v {
		switch {
		case math.IsNaN(v[i]):
			v[i] = 0.5
		case v[i] < 0:
			v[i] = 0
		case v[i] > 1:
			v[i] = 1
		}
	}
	return fromValues(v)
}

func (d Dimensions) valid() bool {
	return d == d.clamped()
}

// Similarity is mean(1 - |a_i - b_i|) over the six dimensions, in [0,1].
func Similarity(a, b Dimensions) float64 {
	av, bv := a.clamped().values(), b.clamped().values()
	sum := 0.0
	for i := range av {
		sum += 1 - math.Abs(av[i]-bv[i])
	}
	return sum / float64(len(av))
}

type Profile struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Dimensions Dimensions `json:"dimensions"`
}

type risk struct {
	Dimension string   `yaml:"dimension"`
	Below     *float64 `yaml:"below"`
	Above     *float64 `yaml:"above"`
	Penalty   float64  `yaml:"penalty"`
	Warning   string   `yaml:"warning"`
}

func (r risk) applies(d Dimensions) bool {
	v, ok := d.get(r.Dimension)
	if !ok {
		return false
	}
	return (r.Below != nil && v < *r.Below) || (r.Above != nil && v > *r.Above)
}

type mechanic struct {
	Affinity Dimensions `yaml:"affinity"`
	Risks    []risk     `yaml:"risks"`
}

type tableFile struct {
	Neutral struct {
		Label      string     `yaml:"label"`
		Dimensions Dimensions `yaml:"dimensions"`
	} `yaml:"neutral"`
	Profiles map[string]struct {
		Label      string     `yaml:"label"`
		Dimensions Dimensions `yaml:"dimensions"`
	} `yaml:"profiles"`
	Mechanics map[string]mechanic `yaml:"mechanics"`
}

// Scorer holds the profile and mechanic tables.
type Scorer struct {
	neutral   Profile
	profiles  map[string]Profile
	names     []string
	mechanics map[string]mechanic
}

// NewScorer parses a YAML profile table.
func NewScorer(b []byte) (*Scorer, error) {
	var f tableFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse culture table: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, fmt.Errorf("culture table has no profiles")
	}

	s := &Scorer{
		neutral:   Profile{Name: "neutral", Label: f.Neutral.Label, Dimensions: f.Neutral.Dimensions},
		profiles:  make(map[string]Profile, len(f.Profiles)),
		mechanics: make(map[string]mechanic, len(f.Mechanics)),
	}
	if !s.neutral.Dimensions.valid() {
		return nil, fmt.Errorf("neutral profile has values outside [0,1]")
	}
	for name, p := range f.Profiles {
		if !p.Dimensions.valid() {
			return nil, fmt.Errorf("profile %s has values outside [0,1]", name)
		}
		key := normalize(name)
		s.profiles[key] = Profile{Name: key, Label: p.Label, Dimensions: p.Dimensions}
		s.names = append(s.names, key)
	}
	sort.Strings(s.names)
	for name, m := range f.Mechanics {
		if !m.Affinity.valid() {
			return nil, fmt.Errorf("mechanic %s has affinity outside [0,1]", name)
		}
		for _, r := range m.Risks {
			if _, ok := m.Affinity.get(r.Dimension); !ok {
				return nil, fmt.Errorf("mechanic %s: unknown dimension %q", name, r.Dimension)
			}
		}
		s.mechanics[normalize(name)] = m
	}
	return s, nil
}

var loadDefaultScorer = sync.OnceValue(func() *Scorer {
	s, err := NewScorer(defaultProfilesYAML)
	if err != nil {
		panic(err)
	}
	return s
})

// DefaultScorer uses the built-in tables.
func DefaultScorer() *Scorer {
	return loadDefaultScorer()
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// Profiles lists the known profiles by name.
func (s *Scorer) Profiles() []Profile {
	out := make([]Profile, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.profiles[n])
	}
	return out
}

// Mechanics lists the known mechanic names.
func (s *Scorer) Mechanics() []string {
	out := make([]string, 0, len(s.mechanics))
	for n := range s.mechanics {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Profile looks a profile up; unknown names return the neutral profile and
// false.
func (s *Scorer) Profile(name string) (Profile, bool) {
	if p, ok := s.profiles[normalize(name)]; ok {
		return p, true
	}
	return s.neutral, false
}
