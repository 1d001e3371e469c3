package bookings

import (
	"time"

	"freightledger/ledger"
)

// Totals sums effective quantities. expired only counts lines scheduled
// strictly before today; a line scheduled for today is still active.
// Negative sums are kept as they are.
func Totals(lines []LineView, today time.Time) (total, expired int64) {
	today = ledger.Day(today)
	for _, line := range lines {
		total += line.EffectiveQuantity
		if line.ScheduledDate != nil && ledger.Day(*line.ScheduledDate).Before(today) {
			expired += line.EffectiveQuantity
		}
	}
	return total, expired
}
