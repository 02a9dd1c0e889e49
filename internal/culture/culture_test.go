package culture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(v float64) Dimensions {
	return fromValues([6]float64{v, v, v, v, v, v})
}

func TestSimilarity(t *testing.T) {
	s := DefaultScorer()
	for _, p := range s.Profiles() {
		assert.Equal(t, 1.0, Similarity(p.Dimensions, p.Dimensions), p.Name)
	}

	assert.Equal(t, 0.0, Similarity(uniform(0), uniform(1)))
	assert.InDelta(t, 0.5, Similarity(uniform(0.5), uniform(0)), 1e-9)
	assert.Equal(t, Similarity(uniform(0.2), uniform(0.9)), Similarity(uniform(0.9), uniform(0.2)))
	// out-of-range input is clamped before comparison
	assert.Equal(t, 1.0, Similarity(uniform(1.7), uniform(1)))
}

func TestDefaultScorer_Tables(t *testing.T) {
	s := DefaultScorer()
	names := make([]string, 0)
	for _, p := range s.Profiles() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"brazil", "china", "germany", "india", "japan", "sweden", "uk", "us"}, names)
	assert.Contains(t, s.Mechanics(), "leaderboard")

	p, ok := s.Profile(" Japan ")
	assert.True(t, ok)
	assert.Equal(t, "japan", p.Name)

	p, ok = s.Profile("atlantis")
	assert.False(t, ok)
	assert.Equal(t, "neutral", p.Name)
	assert.Equal(t, uniform(0.5), p.Dimensions)
}

func TestNewScorer_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"syntax", "profiles: ["},
		{"no profiles", "neutral: {label: N}\nprofiles: {}"},
		{"out of range", "profiles:\n  x:\n    dimensions: {individualism: 1.4}"},
		{"bad risk dimension", `profiles:
  x:
    dimensions: {individualism: 0.4}
mechanics:
  m:
    risks:
      - {dimension: hubris, below: 0.5, penalty: 0.1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScorer([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFeatureProfile(t *testing.T) {
	s := DefaultScorer()

	d, warnings := s.FeatureProfile(Feature{Mechanics: []string{"leaderboard"}})
	assert.Empty(t, warnings)
	assert.Equal(t, 0.85, d.Competitiveness)

	d, warnings = s.FeatureProfile(Feature{Mechanics: []string{"leaderboard", "team_challenge"}})
	assert.Empty(t, warnings)
	assert.InDelta(t, 0.55, d.Individualism, 1e-9)

	d, warnings = s.FeatureProfile(Feature{Mechanics: []string{"confetti"}})
	assert.Equal(t, uniform(0.5), d)
	assert.Len(t, warnings, 2)

	override := uniform(1.5)
	d, _ = s.FeatureProfile(Feature{Mechanics: []string{"leaderboard"}, Dimensions: &override})
	assert.Equal(t, uniform(1), d)
}

func TestScore(t *testing.T) {
	s := DefaultScorer()
	board := Feature{Name: "weekly board", Mechanics: []string{"leaderboard"}}

	us := s.Score(board, "us")
	assert.Equal(t, "weekly board", us.Feature)
	assert.Equal(t, "us", us.Profile)
	assert.InDelta(t, 0.905, us.Similarity, 1e-4)
	assert.Zero(t, us.Penalty)
	assert.InDelta(t, 0.905, us.Score, 1e-4)
	assert.Equal(t, LevelExcellent, us.Level)
	assert.Empty(t, us.Warnings)
	assert.NotNil(t, us.Warnings)

	sweden := s.Score(board, "sweden")
	assert.InDelta(t, 0.7583, sweden.Similarity, 1e-4)
	assert.InDelta(t, 0.10, sweden.Penalty, 1e-9)
	assert.InDelta(t, 0.6583, sweden.Score, 1e-4)
	assert.Equal(t, LevelGood, sweden.Level)
	require.Len(t, sweden.Warnings, 1)
	assert.Contains(t, sweden.Warnings[0], "leaderboard:")
}

func TestScore_UnknownProfileLowersScore(t *testing.T) {
	s := DefaultScorer()
	board := Feature{Mechanics: []string{"leaderboard"}}

	fs := s.Score(board, "atlantis")
	assert.Equal(t, "neutral", fs.Profile)
	assert.InDelta(t, 0.8167, fs.Similarity, 1e-4)
	assert.InDelta(t, unknownProfilePenalty, fs.Penalty, 1e-9)
	assert.InDelta(t, 0.7167, fs.Score, 1e-4)
	assert.Contains(t, fs.Warnings, `unknown profile "atlantis", scored against neutral`)
}

func TestScore_ClampedAndRepeatedMechanicsCountOnce(t *testing.T) {
	s := DefaultScorer()
	once := s.Score(Feature{Mechanics: []string{"leaderboard"}}, "sweden")
	twice := s.Score(Feature{Mechanics: []string{"leaderboard", "Leaderboard"}}, "sweden")
	assert.Equal(t, once.Penalty, twice.Penalty)

	opposite := uniform(1)
	fs := s.Score(Feature{Dimensions: &opposite, Mechanics: []string{"leaderboard", "random_rewards", "status_titles", "celebrations"}}, "sweden")
	assert.GreaterOrEqual(t, fs.Score, 0.0)
	assert.LessOrEqual(t, fs.Score, 1.0)
}

func TestRank(t *testing.T) {
	s := DefaultScorer()
	ranking := s.Rank(Feature{Mechanics: []string{"leaderboard"}})

	require.Len(t, ranking, len(s.Profiles()))
	assert.Equal(t, "uk", ranking[0].Profile)
	for i := 1; i < len(ranking); i++ {
		assert.GreaterOrEqual(t, ranking[i-1].Score, ranking[i].Score)
	}
}

func TestAdapt(t *testing.T) {
	s := DefaultScorer()

	japan := s.Adapt(Feature{}, "japan")
	assert.Equal(t, "japan", japan.Profile)
	assert.Contains(t, japan.Narrative, "balanced story")
	assert.Contains(t, japan.Reward, "long-term mastery")
	assert.Contains(t, japan.Competition, "team-versus-team")
	assert.Len(t, japan.Notes, 1)

	sweden := s.Adapt(Feature{}, "sweden")
	assert.Contains(t, sweden.Narrative, "personal hero journey")
	assert.Contains(t, sweden.Reward, "immediate delight")
	assert.Contains(t, sweden.Competition, "cooperative goals")
	assert.Empty(t, sweden.Notes)

	china := s.Adapt(Feature{}, "china")
	assert.Contains(t, china.Narrative, "shared journey")
	assert.Len(t, china.Notes, 2)

	board := s.Adapt(Feature{Mechanics: []string{"leaderboard", "streaks"}}, "sweden")
	require.Len(t, board.Notes, 2)
	assert.Contains(t, board.Notes[0], "leaderboard:")
	assert.Contains(t, board.Notes[1], "streaks:")

	unknown := s.Adapt(Feature{}, "atlantis")
	assert.Equal(t, "neutral", unknown.Profile)
	assert.Contains(t, unknown.Competition, "opt-in")
	assert.Contains(t, unknown.Reward, "steady progress")
	assert.Len(t, unknown.Notes, 1)
}
