package router

import "math/rand/v2"

// IsMilestone reports whether a like total lands exactly on a celebrated
// value: every 100 up to 500, every 500 up to 10000, every 1000 beyond.
func IsMilestone(n int64) bool {
	switch {
	case n <= 0:
		return false
	case n <= 500:
		return n%100 == 0
	case n <= 10000:
		return n%500 == 0
	default:
		return n%1000 == 0
	}
}

// CelebrationWords are mixed into milestone announcements.
var CelebrationWords = []string{
	"Amazing",
	"Awesome",
	"Incredible",
	"Woohoo",
	"Fantastic",
	"Let's go",
	"Unbelievable",
	"Wow",
}

func randomIndex(n int) int {
	return rand.IntN(n)
}
