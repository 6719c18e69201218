package usecase

import (
	"sort"

	"github.com/shiki2014/binan/internal/domain"
)

// Breakout tests the snapshot's last closed bar against the reference range.
// A long needs a close above the range on a bar that did not close down, a
// short the mirror image. At most one direction can hold.
func Breakout(s *domain.SymbolSnapshot) domain.Direction {
	return breakout(s.ClosePrice, s.OpenPrice, s.HighestPoint, s.LowestPoint)
}

// BreakoutOf applies the same test to a raw window of lookback+2 bars.
func BreakoutOf(window []domain.Kline) domain.Direction {
	if len(window) < 3 {
		return domain.DirectionNone
	}
	reference := window[:len(window)-2]
	closed := window[len(window)-2]

	highest, lowest := reference[0].High, reference[0].Low
	for _, k := range reference[1:] {
		if k.High > highest {
			highest = k.High
		}
		if k.Low < lowest {
			lowest = k.Low
		}
	}
	return breakout(closed.Close, closed.Open, highest, lowest)
}

func breakout(closePrice, openPrice, highest, lowest float64) domain.Direction {
	switch {
	case closePrice > highest && closePrice >= openPrice:
		return domain.DirectionLong
	case closePrice < lowest && closePrice <= openPrice:
		return domain.DirectionShort
	}
	return domain.DirectionNone
}

// SignalEngine decides which snapshots become candidates and in what order.
type SignalEngine struct {
	lookback int
}

func NewSignalEngine(lookback int) *SignalEngine {
	return &SignalEngine{lookback: lookback}
}

// IsFirstBreak walks the lookback windows that ended 1..lookback bars before
// the current one, newest first. Meeting a breakout in the opposite direction
// ends the walk (the move is fresh); meeting one in the same direction means
// the current breakout is a repeat.
func (e *SignalEngine) IsFirstBreak(full []domain.Kline, dir domain.Direction) bool {
	window := e.lookback + 2
	end := len(full)
	for k := 1; k <= e.lookback; k++ {
		start := end - k - window
		if start < 0 {
			break
		}
		switch BreakoutOf(full[start : end-k]) {
		case -dir:
			return true
		case dir:
			return false
		}
	}
	return true
}

// Evaluate returns the candidate for a snapshot, or false when the symbol
// should not trade this round. An existing same-side position that is in
// profit turns the signal into an add-on, which is accepted even when the
// breakout is a repeat.
func (e *SignalEngine) Evaluate(s *domain.SymbolSnapshot, account *domain.Account) (domain.Candidate, bool) {
	dir := Breakout(s)
	if dir == domain.DirectionNone {
		return domain.Candidate{}, false
	}

	var pos *domain.Position
	if account != nil {
		pos = account.FindPosition(s.Symbol, dir.Side())
	}
	sig := domain.Signal{
		Direction:    dir,
		IsFirstBreak: e.IsFirstBreak(s.FullKlines, dir),
		IsAddOn:      pos != nil && pos.UnrealizedProfit > 0,
	}
	if !sig.IsFirstBreak && !sig.IsAddOn {
		return domain.Candidate{}, false
	}
	return domain.Candidate{Snapshot: s, Signal: sig, Position: pos}, true
}

// Rank orders candidates in place: whitelisted first, then add-ons, then by
// trend oscillation ascending (clean trends first) and trade count
// descending. Equal trade counts go to the calmer symbol by persisted
// volatility. The sort is stable so equal keys keep scan order.
func Rank(candidates []domain.Candidate) []domain.Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Snapshot.Whitelisted != b.Snapshot.Whitelisted {
			return a.Snapshot.Whitelisted
		}
		if a.Signal.IsAddOn != b.Signal.IsAddOn {
			return a.Signal.IsAddOn
		}
		if a.Snapshot.TrendOscillation != b.Snapshot.TrendOscillation {
			return a.Snapshot.TrendOscillation < b.Snapshot.TrendOscillation
		}
		if a.Snapshot.TradeCount != b.Snapshot.TradeCount {
			return a.Snapshot.TradeCount > b.Snapshot.TradeCount
		}
		return a.Snapshot.Volatility < b.Snapshot.Volatility
	})
	return candidates
}
