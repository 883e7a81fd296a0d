package contracts

import (
	"errors"
	"fmt"
)

// DataGapError marks a candidate as lacking sufficient scoring or
// price data for one step. Non-fatal: the candidate is excluded for
// that step only.
type DataGapError struct {
	Ticker string
	Reason string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s: %s", e.Ticker, e.Reason)
}

// IsDataGap reports whether err is (or wraps) a DataGapError
func IsDataGap(err error) bool {
	var gap *DataGapError
	return errors.As(err, &gap)
}

// GapReason extracts the gap reason, or the plain error text for
// other errors
func GapReason(err error) string {
	var gap *DataGapError
	if errors.As(err, &gap) {
		return gap.Reason
	}
	return err.Error()
}
