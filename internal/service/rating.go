package service

import (
	"fmt"
	"math"
)

// Rating rule names accepted by NewRatingCalculator.
const (
	RatingRuleScoreMargin = "score_margin"
	RatingRuleELO         = "elo"
)

// RatingCalculator 매치 결과로 두 플레이어의 새 레이팅을 계산
type RatingCalculator interface {
	Calculate(winnerRating, loserRating, winnerScore, loserScore int) (newWinner, newLoser int, err error)
}

// NewRatingCalculator 규칙 이름으로 계산기 생성 (빈 문자열은 score_margin)
func NewRatingCalculator(rule string) (RatingCalculator, error) {
	switch rule {
	case "", RatingRuleScoreMargin:
		return NewScoreMarginCalculator(), nil
	case RatingRuleELO:
		return NewELOCalculator(), nil
	default:
		return nil, fmt.Errorf("unknown rating rule %q: %w", rule, ErrInvalidInput)
	}
}

// ScoreMarginCalculator 점수 차이에 비례하는 레이팅 변동
type ScoreMarginCalculator struct {
	WinMultiplier  int
	LossMultiplier int
}

func NewScoreMarginCalculator() *ScoreMarginCalculator {
	return &ScoreMarginCalculator{
		WinMultiplier:  100,
		LossMultiplier: 50,
	}
}

func (c *ScoreMarginCalculator) Calculate(winnerRating, loserRating, winnerScore, loserScore int) (int, int, error) {
	if err := validateScores(winnerScore, loserScore); err != nil {
		return 0, 0, err
	}

	margin := winnerScore - loserScore
	if c.WinMultiplier > 0 && margin > (math.MaxInt-max(winnerRating, 0))/c.WinMultiplier {
		return 0, 0, fmt.Errorf("score margin %d overflows rating: %w", margin, ErrInvalidScore)
	}
	newWinner := winnerRating + margin*c.WinMultiplier

	// 0 미만이 되는 차감은 곱셈 없이 0으로 고정
	newLoser := 0
	if c.LossMultiplier <= 0 || margin <= max(loserRating, 0)/c.LossMultiplier {
		newLoser = loserRating - margin*c.LossMultiplier
	}
	if newLoser < 0 {
		newLoser = 0
	}
	return newWinner, newLoser, nil
}

// ELOCalculator ELO 레이팅 계산기. 점수 차이는 승패 판정에만 사용
type ELOCalculator struct {
	KFactor float64
}

func NewELOCalculator() *ELOCalculator {
	return &ELOCalculator{
		KFactor: 32, // K-factor: 레이팅 변동 폭
	}
}

func (c *ELOCalculator) Calculate(winnerRating, loserRating, winnerScore, loserScore int) (int, int, error) {
	if err := validateScores(winnerScore, loserScore); err != nil {
		return 0, 0, err
	}

	// 기대 승률 계산
	expectedWinner := expectedScore(float64(winnerRating), float64(loserRating))
	expectedLoser := 1.0 - expectedWinner

	newWinner := int(math.Round(float64(winnerRating) + c.KFactor*(1.0-expectedWinner)))
	newLoser := int(math.Round(float64(loserRating) - c.KFactor*expectedLoser))
	if newLoser < 0 {
		newLoser = 0
	}
	return newWinner, newLoser, nil
}

// expectedScore ELO에 기반한 기대 승률 계산
func expectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}

func validateScores(winnerScore, loserScore int) error {
	if winnerScore < 0 || loserScore < 0 {
		return fmt.Errorf("negative score %d-%d: %w", winnerScore, loserScore, ErrInvalidScore)
	}
	if winnerScore <= loserScore {
		return fmt.Errorf("score %d-%d: %w", winnerScore, loserScore, ErrInvalidScore)
	}
	return nil
}
