package core

import (
	"fmt"
	"time"
)

// ValidateBars checks that a bar series is non-empty, single-symbol and
// strictly ascending in time. Per-bar price sanity is not checked here; the
// simulator treats a bad price as a recoverable per-bar error.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return WrapError(ErrNoData, fmt.Errorf("bar series is empty"))
	}
	symbol := bars[0].Symbol
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1], bars[i]
		if cur.Symbol != symbol {
			return WrapError(ErrInvalidInput,
				fmt.Errorf("bar %d has symbol %q, series is %q", i, cur.Symbol, symbol))
		}
		if cur.Time.Equal(prev.Time) {
			return WrapError(ErrInvalidInput,
				fmt.Errorf("duplicate bar timestamp %s at index %d", cur.Time.Format(time.RFC3339), i))
		}
		if cur.Time.Before(prev.Time) {
			return WrapError(ErrInvalidInput,
				fmt.Errorf("bar timestamp %s at index %d precedes %s", cur.Time.Format(time.RFC3339), i, prev.Time.Format(time.RFC3339)))
		}
	}
	return nil
}

// IndexSignals keys signals by timestamp. Two signals sharing a timestamp,
// an unknown side, a confidence outside [0,1] or a symbol other than the
// expected one are rejected. An empty symbol accepts any.
func IndexSignals(signals []Signal, symbol string) (map[int64]Signal, error) {
	idx := make(map[int64]Signal, len(signals))
	for i, sig := range signals {
		if !sig.Side.Valid() {
			return nil, WrapError(ErrInvalidInput,
				fmt.Errorf("signal %d has unknown side %q", i, sig.Side))
		}
		if symbol != "" && sig.Symbol != symbol {
			return nil, WrapError(ErrInvalidInput,
				fmt.Errorf("signal %d is for %q, bars are for %q", i, sig.Symbol, symbol))
		}
		if sig.Confidence != nil && (*sig.Confidence < 0 || *sig.Confidence > 1) {
			return nil, WrapError(ErrInvalidInput,
				fmt.Errorf("signal %d confidence %v outside [0,1]", i, *sig.Confidence))
		}
		key := sig.Time.UnixNano()
		if _, dup := idx[key]; dup {
			return nil, WrapError(ErrInvalidInput,
				fmt.Errorf("duplicate signal timestamp %s for %s", sig.Time.Format(time.RFC3339), sig.Symbol))
		}
		idx[key] = sig
	}
	return idx, nil
}
