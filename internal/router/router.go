// Package router turns feed events into display records and announcements.
// It also owns the per-session like counter and announces like milestones.
package router

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/dgnsrekt/live-announcer/internal/announce"
	"github.com/dgnsrekt/live-announcer/internal/feed"
	"github.com/dgnsrekt/live-announcer/internal/observe"
	"github.com/dgnsrekt/live-announcer/internal/present"
	"github.com/dgnsrekt/live-announcer/internal/sounds"
	"github.com/dgnsrekt/live-announcer/internal/speech"
)

// Defaults.
const (
	DefaultMaxSpeechWidth  = 200
	DefaultBigGiftDiamonds = 100
)

// Config configures a Router.
type Config struct {
	Queue     announce.Enqueuer
	Presenter present.Presenter

	// MaxSpeechWidth bounds spoken chat text in display cells.
	MaxSpeechWidth int
	// BigGiftDiamonds is the diamond value at which a gift counts as big.
	BigGiftDiamonds int64
	// Words overrides CelebrationWords.
	Words []string
	// Pick chooses an index in [0, n). Defaults to a random choice.
	Pick func(n int) int

	Logger  *log.Logger
	Metrics *observe.Metrics
}

// Router maps feed events to records and announcements.
type Router struct {
	queue     announce.Enqueuer
	presenter present.Presenter
	maxWidth  int
	bigGift   int64
	words     []string
	pick      func(int) int
	log       *log.Logger
	metrics   *observe.Metrics

	mu    sync.Mutex
	likes int64
}

// New returns a router.
func New(cfg Config) *Router {
	if cfg.MaxSpeechWidth <= 0 {
		cfg.MaxSpeechWidth = DefaultMaxSpeechWidth
	}
	if cfg.BigGiftDiamonds <= 0 {
		cfg.BigGiftDiamonds = DefaultBigGiftDiamonds
	}
	if len(cfg.Words) == 0 {
		cfg.Words = CelebrationWords
	}
	if cfg.Pick == nil {
		cfg.Pick = randomIndex
	}
	if cfg.Presenter == nil {
		cfg.Presenter = present.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("router")
	}
	return &Router{
		queue:     cfg.Queue,
		presenter: cfg.Presenter,
		maxWidth:  cfg.MaxSpeechWidth,
		bigGift:   cfg.BigGiftDiamonds,
		words:     cfg.Words,
		pick:      cfg.Pick,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// Handle routes one event. Connection events are ignored; the session
// controller handles them.
func (r *Router) Handle(e feed.Event) {
	r.metrics.RecordFeedEvent(string(e.Type()))

	switch ev := e.(type) {
	case feed.Chat:
		r.chat(ev)
	case feed.Like:
		r.like(ev)
	case feed.Follow:
		r.publish(present.TypeFollow, ev.UniqueID, fmt.Sprintf("%s followed!", ev.UniqueID), nil)
		r.enqueue(announce.Sound(string(sounds.RoleFollow)))
	case feed.Gift:
		r.gift(ev)
	case feed.Share:
		r.publish(present.TypeShare, ev.UniqueID, fmt.Sprintf("%s shared the stream!", ev.UniqueID), nil)
		r.enqueue(announce.Sound(string(sounds.RoleShare)))
	case feed.Connected, feed.Disconnected:
	default:
		r.log.Debug("Unhandled feed event", "type", e.Type())
	}
}

func (r *Router) chat(ev feed.Chat) {
	name := ev.DisplayName()
	r.publish(present.TypeChat, name, fmt.Sprintf("%s: %s", name, ev.Comment), nil)

	text := speech.Normalize(fmt.Sprintf("%s says %s", name, ev.Comment))
	r.enqueue(announce.Speech(runewidth.Truncate(text, r.maxWidth, "")))
}

func (r *Router) like(ev feed.Like) {
	r.mu.Lock()
	prev := r.likes
	next := prev
	if ev.TotalLikeCount != nil {
		// Totals can arrive out of order; never let the counter go back.
		if *ev.TotalLikeCount > prev {
			next = *ev.TotalLikeCount
		}
	} else if ev.LikeCount > 0 {
		next = prev + ev.LikeCount
	}
	r.likes = next
	r.mu.Unlock()

	r.publish(present.TypeLike, ev.UniqueID,
		fmt.Sprintf("%s liked the stream (%d likes)", ev.UniqueID, ev.LikeCount),
		map[string]string{"total": humanize.Comma(next)})

	if next != prev && IsMilestone(next) {
		word := r.words[r.pick(len(r.words))]
		r.metrics.RecordMilestone()
		r.log.Info("Like milestone", "likes", next)
		r.publish(present.TypeSystem, "", fmt.Sprintf("%s likes!", humanize.Comma(next)), nil)
		r.enqueue(announce.Speech(fmt.Sprintf("%s! We just hit %s likes!", word, strconv.FormatInt(next, 10))))
	}
}

// GiftRole classifies a gift. A finished streak wins over value.
func (r *Router) GiftRole(ev feed.Gift) sounds.Role {
	switch {
	case ev.RepeatEnd:
		return sounds.RoleMultiGift
	case ev.DiamondCount >= r.bigGift:
		return sounds.RoleBigGift
	default:
		return sounds.RoleSmallGift
	}
}

func (r *Router) gift(ev feed.Gift) {
	role := r.GiftRole(ev)
	var msg string
	switch role {
	case sounds.RoleMultiGift:
		msg = fmt.Sprintf("%s sent a COMBO of %s x%d", ev.UniqueID, ev.GiftName, ev.RepeatCount)
	case sounds.RoleBigGift:
		msg = fmt.Sprintf("%s sent a BIG gift: %s", ev.UniqueID, ev.GiftName)
	default:
		msg = fmt.Sprintf("%s sent %s", ev.UniqueID, ev.GiftName)
	}
	r.publish(present.TypeGift, ev.UniqueID, msg, map[string]string{
		"gift":     ev.GiftName,
		"role":     string(role),
		"diamonds": strconv.FormatInt(ev.DiamondCount, 10),
	})
	r.enqueue(announce.Sound(string(role)))
}

func (r *Router) publish(t present.RecordType, user, msg string, meta map[string]string) {
	r.presenter.PublishEvent(present.Record{Type: t, User: user, Message: msg, Meta: meta})
}

func (r *Router) enqueue(item announce.Item) {
	if r.queue == nil {
		return
	}
	r.queue.Enqueue(item)
}

// Likes returns the like total for the current session.
func (r *Router) Likes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.likes
}

// Reset zeroes the per-session counters.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes = 0
}
