package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreSlipRejectsNegativePoints(t *testing.T) {
	_, err := ScoreSlip([]PickOutcome{{Status: PickHit, PointValue: -1}})
	require.ErrorIs(t, err, ErrNegativePointValue)
}

func TestScoreSlipAllHits(t *testing.T) {
	score, err := ScoreSlip([]PickOutcome{
		{Status: PickHit, PointValue: 100},
		{Status: PickHit, PointValue: 150},
	})
	require.NoError(t, err)
	require.Equal(t, int64(250), score.PointsEarned)
	require.Equal(t, 2, score.CorrectPicks)
	require.Equal(t, 2, score.ValidPicks)
	require.Equal(t, SlipWon, score.Status)
}

func TestScoreSlipAnyMissLoses(t *testing.T) {
	score, err := ScoreSlip([]PickOutcome{
		{Status: PickHit, PointValue: 100},
		{Status: PickHit, PointValue: 200},
		{Status: PickMiss, PointValue: 300},
	})
	require.NoError(t, err)
	require.Equal(t, int64(300), score.PointsEarned)
	require.Equal(t, 2, score.CorrectPicks)
	require.Equal(t, 3, score.ValidPicks)
	require.Equal(t, SlipLost, score.Status)
}

func TestScoreSlipPushesExcludedButNotLosing(t *testing.T) {
	score, err := ScoreSlip([]PickOutcome{
		{Status: PickPush, PointValue: 100},
		{Status: PickPush, PointValue: 200},
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), score.PointsEarned)
	require.Equal(t, 0, score.ValidPicks)
	require.Equal(t, SlipWon, score.Status)
}

func TestScoreSlipAllVoid(t *testing.T) {
	score, err := ScoreSlip([]PickOutcome{
		{Status: PickVoid, PointValue: 100},
		{Status: PickVoid, PointValue: 50},
	})
	require.NoError(t, err)
	require.Equal(t, SlipVoid, score.Status)
	require.Equal(t, int64(0), score.PointsEarned)
}

func TestScoreSlipVoidAndPendingExcluded(t *testing.T) {
	score, err := ScoreSlip([]PickOutcome{
		{Status: PickHit, PointValue: 100},
		{Status: PickVoid, PointValue: 500},
		{Status: PickPending, PointValue: 500},
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), score.PointsEarned)
	require.Equal(t, 1, score.CorrectPicks)
	require.Equal(t, 1, score.ValidPicks)
	require.Equal(t, SlipWon, score.Status)
}

func TestScoreSlipZeroPointValueIsValid(t *testing.T) {
	score, err := ScoreSlip([]PickOutcome{{Status: PickHit, PointValue: 0}})
	require.NoError(t, err)
	require.Equal(t, int64(0), score.PointsEarned)
	require.Equal(t, 1, score.CorrectPicks)
}
