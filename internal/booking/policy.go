package booking

// DefaultDailyCap is the maximum number of active appointments a patient may
// hold on one calendar date.
const DefaultDailyCap = 2

type Decision int

const (
	Accept Decision = iota
	RejectSlotTaken
	RejectDailyCapExceeded
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case RejectSlotTaken:
		return "reject_slot_taken"
	case RejectDailyCapExceeded:
		return "reject_daily_cap_exceeded"
	default:
		return "unknown"
	}
}

// EvaluateBooking decides whether a booking attempt may proceed, given the
// candidate slot and the patient's active appointment count on the slot's
// date. Slot-taken wins over the cap check: a stale slot view is the cheaper,
// more specific failure and should not leak cap state.
//
// Pure function, no I/O. The caller supplies the reads.
func EvaluateBooking(slot *Slot, patientActiveCountOnDate, dailyCap int) Decision {
	if !slot.Available {
		return RejectSlotTaken
	}
	if patientActiveCountOnDate >= dailyCap {
		return RejectDailyCapExceeded
	}
	return Accept
}
