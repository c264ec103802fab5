package router

import "github.com/dgnsrekt/live-announcer/internal/feed"

// Sample names, in keyboard order.
var SampleNames = []string{"chat", "small-gift", "big-gift", "multi-gift", "like", "follow", "share"}

// Sample returns a synthetic event for checking sounds and voices without a
// live stream.
func Sample(name string) (feed.Event, bool) {
	switch name {
	case "chat":
		return feed.Chat{UniqueID: "User123", Comment: "Hello World!"}, true
	case "small-gift":
		return feed.Gift{UniqueID: "User456", GiftName: "Rose", DiamondCount: 1, RepeatCount: 1}, true
	case "big-gift":
		return feed.Gift{UniqueID: "User789", GiftName: "Lion", DiamondCount: 29999, RepeatCount: 1}, true
	case "multi-gift":
		return feed.Gift{UniqueID: "User999", GiftName: "Rose", DiamondCount: 1, RepeatEnd: true, RepeatCount: 5}, true
	case "like":
		return feed.Like{UniqueID: "User321", LikeCount: 1}, true
	case "follow":
		return feed.Follow{UniqueID: "User654"}, true
	case "share":
		return feed.Share{UniqueID: "User888"}, true
	}
	return nil, false
}
