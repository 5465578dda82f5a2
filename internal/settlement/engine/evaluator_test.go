package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func finalEvent(home, away int64) EventOutcome {
	return EventOutcome{ID: "ev1", HomeScore: i64(home), AwayScore: i64(away), Status: EventFinal}
}

func TestEvaluatePickVoidOnCancelledOrPostponed(t *testing.T) {
	p := Pick{Type: Moneyline, Selection: "home", PointValue: 100}

	res := EvaluatePick(p, EventOutcome{Status: EventCancelled, HomeScore: i64(1), AwayScore: i64(0)})
	require.Equal(t, PickVoid, res.Status)

	res = EvaluatePick(p, EventOutcome{Status: EventPostponed})
	require.Equal(t, PickVoid, res.Status)
}

func TestEvaluatePickVoidOnMissingScore(t *testing.T) {
	p := Pick{Type: Moneyline, Selection: "home"}
	res := EvaluatePick(p, EventOutcome{Status: EventFinal, HomeScore: i64(2)})
	require.Equal(t, PickVoid, res.Status)
	require.Equal(t, "missing score", res.Reason)
}

func TestEvaluatePickPendingWhenNotFinal(t *testing.T) {
	p := Pick{Type: Moneyline, Selection: "home"}
	res := EvaluatePick(p, EventOutcome{Status: EventLive, HomeScore: i64(1), AwayScore: i64(1)})
	require.Equal(t, PickPending, res.Status)
}

func TestEvaluateMoneyline(t *testing.T) {
	cases := []struct {
		name      string
		selection string
		home      int64
		away      int64
		want      PickStatus
	}{
		{"home wins home pick", "home", 3, 1, PickHit},
		{"home wins away pick", "away", 3, 1, PickMiss},
		{"away wins away pick", "away", 0, 2, PickHit},
		{"level is push", "home", 2, 2, PickPush},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := EvaluatePick(Pick{Type: Moneyline, Selection: tc.selection}, finalEvent(tc.home, tc.away))
			require.Equal(t, tc.want, res.Status)
		})
	}
}

func TestEvaluateMoneylineSelectionNormalized(t *testing.T) {
	res := EvaluatePick(Pick{Type: Moneyline, Selection: "  HoMe "}, finalEvent(3, 1))
	require.Equal(t, PickHit, res.Status)
}

func TestEvaluateSpreadExactPush(t *testing.T) {
	// home -3.5 não tem push; home -3.0 com margem 3 é push exato
	p := Pick{Type: Spread, Selection: "home", LineHundredths: i64(-300)}
	res := EvaluatePick(p, finalEvent(24, 21))
	require.Equal(t, PickPush, res.Status)
}

func TestEvaluateSpreadHalfLineNeverPushes(t *testing.T) {
	p := Pick{Type: Spread, Selection: "home", LineHundredths: i64(-350)}

	res := EvaluatePick(p, finalEvent(25, 21)) // cobre por 0.5
	require.Equal(t, PickHit, res.Status)

	res = EvaluatePick(p, finalEvent(24, 21)) // falha por 0.5
	require.Equal(t, PickMiss, res.Status)
}

func TestEvaluateSpreadAwaySide(t *testing.T) {
	// linha -7 aplicada ao mandante; visitante perde por 3 e cobre
	p := Pick{Type: Spread, Selection: "away", LineHundredths: i64(-700)}
	res := EvaluatePick(p, finalEvent(20, 17))
	require.Equal(t, PickHit, res.Status)

	// mandante vence por 13 e cobre -7; pick no visitante perde
	res = EvaluatePick(p, finalEvent(30, 17))
	require.Equal(t, PickMiss, res.Status)
}

func TestEvaluateTotal(t *testing.T) {
	over := Pick{Type: Total, Selection: "over", LineHundredths: i64(4550)}
	under := Pick{Type: Total, Selection: "under", LineHundredths: i64(4550)}

	res := EvaluatePick(over, finalEvent(28, 20)) // 48 > 45.5
	require.Equal(t, PickHit, res.Status)
	require.Equal(t, int64(48), res.ResolvedValue)

	res = EvaluatePick(under, finalEvent(28, 20))
	require.Equal(t, PickMiss, res.Status)

	exact := Pick{Type: Total, Selection: "over", LineHundredths: i64(4800)}
	res = EvaluatePick(exact, finalEvent(28, 20)) // 48 == 48.0
	require.Equal(t, PickPush, res.Status)
}

func TestEvaluatePropVoids(t *testing.T) {
	res := EvaluatePick(Pick{Type: Prop, Selection: "over", LineHundredths: i64(1050)}, finalEvent(3, 1))
	require.Equal(t, PickVoid, res.Status)
}

func TestEvaluateMissingLineVoids(t *testing.T) {
	res := EvaluatePick(Pick{Type: Spread, Selection: "home"}, finalEvent(3, 1))
	require.Equal(t, PickVoid, res.Status)
	require.Equal(t, "missing line", res.Reason)
}

func TestEvaluateDeterministic(t *testing.T) {
	p := Pick{Type: Spread, Selection: "home", LineHundredths: i64(-350)}
	ev := finalEvent(24, 21)
	first := EvaluatePick(p, ev)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, EvaluatePick(p, ev))
	}
}
