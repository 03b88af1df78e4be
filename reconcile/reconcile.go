// reconcile/reconcile.go
package reconcile

import (
	"github.com/hikingtw/trailguard/models"
)

// reviewKey is the identity tuple for a review. A nil ReviewDate is a
// distinguishable identity value, tracked via hasDate rather than a zero time.
type reviewKey struct {
	userID  string
	date    int64
	hasDate bool
	content string
}

func identity(r models.Review) reviewKey {
	k := reviewKey{userID: r.UserID, content: r.Content}
	if r.ReviewDate != nil {
		k.date = r.ReviewDate.UTC().UnixNano()
		k.hasDate = true
	}
	return k
}

// NewReviews returns the candidates whose (user_id, review_date, content)
// tuple does not appear in existing, preserving candidate order.
//
// Duplicate candidates collapse to one. This also means two reviews by the
// same user with identical date and text are treated as one entity; that is
// the identity contract the rest of the system relies on, kept as a known
// limitation.
func NewReviews(existing, candidates []models.Review) []models.Review {
	seen := make(map[reviewKey]struct{}, len(existing))
	for _, r := range existing {
		seen[identity(r)] = struct{}{}
	}

	var fresh []models.Review
	for _, c := range candidates {
		k := identity(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh
}
