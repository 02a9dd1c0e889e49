package culture

import (
	"fmt"
	"math"
	"sort"
)

const unknownProfilePenalty = 0.10

// Feature is a proposed gamification feature. Dimensions, when set,
// overrides the profile derived from Mechanics.
type Feature struct {
	Name       string      `json:"name"`
	Mechanics  []string    `json:"mechanics"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelFair      Level = "fair"
	LevelPoor      Level = "poor"
)

func levelFor(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelExcellent
	case score >= 0.65:
		return LevelGood
	case score >= 0.5:
		return LevelFair
	default:
		return LevelPoor
	}
}

type FitScore struct {
	Feature    string   `json:"feature"`
	Profile    string   `json:"profile"`
	Similarity float64  `json:"similarity"`
	Penalty    float64  `json:"penalty"`
	Score      float64  `json:"score"`
	Level      Level    `json:"level"`
	Warnings   []string `json:"warnings"`
}

// FeatureProfile is the mean affinity of the feature's known mechanics, or
// neutral when none are known.
func (s *Scorer) FeatureProfile(f Feature) (Dimensions, []string) {
	if f.Dimensions != nil {
		return f.Dimensions.clamped(), nil
	}
	var (
		sum      [6]float64
		n        int
		warnings []string
	)
	for _, name := range f.Mechanics {
		m, ok := s.mechanics[normalize(name)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown mechanic %q ignored", name))
			continue
		}
		for i, v := range m.Affinity.values() {
			sum[i] += v
		}
		n++
	}
	if n == 0 {
		warnings = append(warnings, "no known mechanics, assuming a neutral feature")
		return s.neutral.Dimensions, warnings
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return fromValues(sum), warnings
}

// Score rates feature against the named profile. Unknown profiles are
// scored against neutral with an extra penalty and a warning.
func (s *Scorer) Score(f Feature, profile string) FitScore {
	p, known := s.Profile(profile)
	fd, warnings := s.FeatureProfile(f)

	fs := FitScore{
		Feature:    f.Name,
		Profile:    p.Name,
		Similarity: round(Similarity(fd, p.Dimensions)),
	}
	if !known {
		warnings = append(warnings, fmt.Sprintf("unknown profile %q, scored against neutral", profile))
		fs.Penalty += unknownProfilePenalty
	}

	penalty, risks := s.risks(f, p.Dimensions)
	fs.Penalty += penalty
	warnings = append(warnings, risks...)

	fs.Penalty = round(fs.Penalty)
	fs.Score = round(math.Max(0, math.Min(1, fs.Similarity-fs.Penalty)))
	fs.Level = levelFor(fs.Score)
	if warnings == nil {
		warnings = []string{}
	}
	fs.Warnings = warnings
	return fs
}

// risks sums the penalties of every mechanic risk triggered by d. A
// mechanic listed twice counts once.
func (s *Scorer) risks(f Feature, d Dimensions) (float64, []string) {
	var (
		penalty  float64
		warnings []string
	)
	seen := make(map[string]bool)
	for _, name := range f.Mechanics {
		key := normalize(name)
		m, ok := s.mechanics[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		for _, r := range m.Risks {
			if r.applies(d) {
				penalty += r.Penalty
				warnings = append(warnings, fmt.Sprintf("%s: %s", key, r.Warning))
			}
		}
	}
	return penalty, warnings
}

// Rank scores feature against every known profile, best fit first.
func (s *Scorer) Rank(f Feature) []FitScore {
	out := make([]FitScore, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.Score(f, n))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Profile < out[j].Profile
	})
	return out
}

type Adaptation struct {
	Profile     string   `json:"profile"`
	Narrative   string   `json:"narrative"`
	Reward      string   `json:"reward"`
	Competition string   `json:"competition"`
	Notes       []string `json:"notes"`
}

// Adapt suggests narrative, reward and competition framings for a profile.
// Risks raised by the feature's mechanics are carried over as notes.
func (s *Scorer) Adapt(f Feature, profile string) Adaptation {
	p, known := s.Profile(profile)
	d := p.Dimensions
	a := Adaptation{Profile: p.Name, Notes: []string{}}

	switch {
	case d.Individualism >= 0.6:
		a.Narrative = "personal hero journey: frame progress as the user's own achievements"
	case d.Individualism <= 0.4:
		a.Narrative = "shared journey: frame progress as a contribution to the team or family"
	default:
		a.Narrative = "balanced story: pair personal milestones with group goals"
	}

	switch {
	case d.LongTermOrientation >= 0.6:
		a.Reward = "long-term mastery: levels, skill paths and cumulative streaks"
	case d.Indulgence >= 0.6:
		a.Reward = "immediate delight: instant badges and celebratory moments"
	default:
		a.Reward = "steady progress: predictable milestone rewards"
	}

	switch {
	case d.Competitiveness >= 0.6 && d.Individualism >= 0.6:
		a.Competition = "open leaderboards and head-to-head challenges"
	case d.Competitiveness >= 0.6:
		a.Competition = "team-versus-team challenges with group rankings"
	case d.Competitiveness <= 0.4:
		a.Competition = "cooperative goals without public ranking"
	default:
		a.Competition = "opt-in friendly challenges"
	}

	if d.UncertaintyAvoidance >= 0.7 {
		a.Notes = append(a.Notes, "spell out rules and reward criteria; avoid random rewards")
	}
	if d.PowerDistance >= 0.7 {
		a.Notes = append(a.Notes, "acknowledge status with titles and mentor roles")
	}
	if d.Indulgence <= 0.3 {
		a.Notes = append(a.Notes, "keep celebrations understated")
	}
	_, risks := s.risks(f, d)
	a.Notes = append(a.Notes, risks...)
	if !known {
		a.Notes = append(a.Notes, fmt.Sprintf("unknown profile %q, using neutral framings", profile))
	}
	return a
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
