// Package announce sequences audible announcements. Items are queued in
// arrival order and rendered to a single Backend strictly one at a time by a
// worker goroutine.
package announce
