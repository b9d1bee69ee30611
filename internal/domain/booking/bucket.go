package booking

import "time"

// Bucket groups bookings for display.
type Bucket string

const (
	BucketActive  Bucket = "active"
	BucketPending Bucket = "pending"
	BucketPast    Bucket = "past"
)

func ParseBucket(raw string) (Bucket, bool) {
	switch b := Bucket(raw); b {
	case BucketActive, BucketPending, BucketPast:
		return b, true
	}
	return "", false
}

// Classify places b in exactly one bucket. Status is checked first, so a
// pending booking stays pending even after its dates have passed.
func Classify(b *Booking, now time.Time) Bucket {
	switch b.Status {
	case StatusPending:
		return BucketPending
	case StatusRejected, StatusCancelled, StatusReturned:
		return BucketPast
	}
	if b.Range.EndsBefore(now) {
		return BucketPast
	}
	return BucketActive
}

// NeedsCompletion reports whether an accepted booking's end date has passed.
func NeedsCompletion(b *Booking, now time.Time) bool {
	return b.Status == StatusAccepted && b.Range.EndsBefore(now)
}
