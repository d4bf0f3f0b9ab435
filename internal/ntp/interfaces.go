package ntp

// TimeProvider stamps captured events with the current time in Unix milliseconds.
// Either the local clock or an NTP-corrected clock can back it.
type TimeProvider interface {
	NowUnixMilli() int64
}
