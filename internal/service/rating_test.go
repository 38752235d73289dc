package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreMarginCalculator(t *testing.T) {
	calc := NewScoreMarginCalculator()

	tests := []struct {
		name                      string
		winnerRating, loserRating int
		winnerScore, loserScore   int
		wantWinner, wantLoser     int
	}{
		{"underdog wins by two", 100, 200, 11, 9, 300, 100},
		{"loser floored at zero", 500, 10, 5, 0, 1000, 0},
		{"exact floor", 0, 50, 1, 0, 100, 0},
		{"one point margin", 1000, 1000, 3, 2, 1100, 950},
		{"huge margin floors loser", 0, 200, math.MaxInt / 100, 0, (math.MaxInt / 100) * 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, l, err := calc.Calculate(tt.winnerRating, tt.loserRating, tt.winnerScore, tt.loserScore)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWinner, w)
			assert.Equal(t, tt.wantLoser, l)
		})
	}
}

func TestScoreMarginCalculator_InvalidScores(t *testing.T) {
	calc := NewScoreMarginCalculator()

	for _, scores := range [][2]int{{9, 11}, {5, 5}, {-1, -3}, {3, -1}} {
		_, _, err := calc.Calculate(100, 100, scores[0], scores[1])
		assert.ErrorIs(t, err, ErrInvalidScore, "scores %v", scores)
	}
}

func TestScoreMarginCalculator_RejectsOverflowingMargin(t *testing.T) {
	calc := NewScoreMarginCalculator()

	tests := []struct {
		name                      string
		winnerRating, loserRating int
		winnerScore               int
	}{
		{"margin wraps multiplier", 100, 200, math.MaxInt / 40},
		{"max score", 0, 0, math.MaxInt},
		{"sum past max", math.MaxInt - 50, 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, l, err := calc.Calculate(tt.winnerRating, tt.loserRating, tt.winnerScore, 0)
			assert.ErrorIs(t, err, ErrInvalidScore)
			assert.Zero(t, w)
			assert.Zero(t, l)
		})
	}
}

func TestELOCalculator(t *testing.T) {
	calc := NewELOCalculator()

	w, l, err := calc.Calculate(1200, 1200, 11, 3)
	require.NoError(t, err)
	assert.Equal(t, 1216, w)
	assert.Equal(t, 1184, l)

	// 이변: 낮은 레이팅이 이기면 더 많이 오름
	w, l, err = calc.Calculate(1000, 1400, 2, 1)
	require.NoError(t, err)
	assert.Greater(t, w-1000, 16)
	assert.Less(t, l, 1400)

	// 0 미만으로 내려가지 않음
	_, l, err = calc.Calculate(10, 10, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, l)

	_, _, err = calc.Calculate(1200, 1200, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestNewRatingCalculator(t *testing.T) {
	calc, err := NewRatingCalculator("")
	require.NoError(t, err)
	assert.IsType(t, &ScoreMarginCalculator{}, calc)

	calc, err = NewRatingCalculator(RatingRuleELO)
	require.NoError(t, err)
	assert.IsType(t, &ELOCalculator{}, calc)

	_, err = NewRatingCalculator("glicko")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
