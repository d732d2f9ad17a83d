package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"filltrip/internal/geocoding"
	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

// ErrNoSuchCandidate is returned when selecting an index outside the
// visible suggestion list
var ErrNoSuchCandidate = errors.New("no such candidate")

// SelectFunc receives the chosen candidate
type SelectFunc func(c models.Coordinates, displayName string)

// Resolver turns keystrokes in one search field into place suggestions.
//
// Every keystroke bumps keyGen so a debounce expiry scheduled for an older
// keystroke is ignored. Every lookup bumps gen so only the most recently
// issued lookup may populate the list. Both counters are read and written
// on the controller loop only.
type Resolver struct {
	role     models.Role
	geocoder geocoding.Geocoder
	limit    int
	minLen   int
	onSelect SelectFunc
	post     func(func())
	ctx      context.Context
	log      *zap.Logger

	debounced func(func())

	text         string
	keyGen       uint64
	gen          uint64
	cancel       context.CancelFunc
	locked       bool
	lastSearched string
	candidates   []models.PlaceCandidate
	visible      bool
}

type resolverConfig struct {
	role     models.Role
	geocoder geocoding.Geocoder
	debounce time.Duration
	limit    int
	minLen   int
	onSelect SelectFunc
	post     func(func())
	ctx      context.Context
	log      *zap.Logger
}

func newResolver(cfg resolverConfig) *Resolver {
	return &Resolver{
		role:      cfg.role,
		geocoder:  cfg.geocoder,
		limit:     cfg.limit,
		minLen:    cfg.minLen,
		onSelect:  cfg.onSelect,
		post:      cfg.post,
		ctx:       cfg.ctx,
		log:       cfg.log.With(zap.String("field", string(cfg.role))),
		debounced: debounce.New(cfg.debounce),
	}
}

// Input handles a keystroke that left the field containing text
func (r *Resolver) Input(text string) {
	r.text = text
	r.keyGen++
	// The first keystroke after a selection only lifts the lock
	r.locked = false

	query := strings.TrimSpace(text)
	if len([]rune(query)) < r.minLen {
		r.abort()
		r.lastSearched = ""
		r.hide()
		return
	}

	key := r.keyGen
	r.debounced(func() {
		r.post(func() { r.settle(key) })
	})
}

// settle runs on the loop once the debounce window has elapsed
func (r *Resolver) settle(key uint64) {
	if key != r.keyGen || r.locked {
		metrics.StaleResultsTotal.WithLabelValues("debounce").Inc()
		return
	}

	query := strings.TrimSpace(r.text)
	if query == r.lastSearched {
		// Same query as the dismissed list: bring it back without a lookup
		if r.cancel == nil && len(r.candidates) > 0 {
			r.visible = true
		}
		return
	}

	r.abort()
	r.gen++
	gen := r.gen
	ctx, cancel := context.WithCancel(r.ctx)
	r.cancel = cancel
	r.lastSearched = query

	r.log.Debug("searching", zap.String("query", query), zap.Uint64("gen", gen))
	go func() {
		results, err := r.geocoder.Search(ctx, query, r.limit)
		r.post(func() { r.complete(gen, results, err) })
	}()
}

func (r *Resolver) complete(gen uint64, results []models.PlaceCandidate, err error) {
	if gen != r.gen {
		metrics.StaleResultsTotal.WithLabelValues("search").Inc()
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	if err != nil {
		// Failures leave the list empty; the user retries by typing
		r.log.Debug("search failed", zap.Error(err))
		r.lastSearched = ""
		r.hide()
		return
	}

	r.candidates = results
	r.visible = len(results) > 0
}

// Select picks the candidate at index, fills the field with its name and
// locks the field until the next keystroke.
func (r *Resolver) Select(index int) error {
	if !r.visible || index < 0 || index >= len(r.candidates) {
		return ErrNoSuchCandidate
	}
	chosen := r.candidates[index]

	r.keyGen++
	r.abort()
	r.text = chosen.DisplayName
	r.locked = true
	r.hide()

	r.onSelect(chosen.Coords, chosen.DisplayName)
	return nil
}

// Dismiss hides the list without touching endpoints. The candidates are
// kept so settling on the same query can show them again.
func (r *Resolver) Dismiss() {
	r.visible = false
}

// SetText replaces the field content without triggering a search
func (r *Resolver) SetText(text string) {
	r.keyGen++
	r.abort()
	r.text = text
	r.locked = true
	r.hide()
}

// Reset empties the field and forgets search history
func (r *Resolver) Reset() {
	r.keyGen++
	r.abort()
	r.text = ""
	r.locked = false
	r.lastSearched = ""
	r.hide()
}

// Close cancels any in-flight lookup
func (r *Resolver) Close() {
	r.keyGen++
	r.abort()
}

func (r *Resolver) Text() string { return r.text }

// Suggestions returns the visible candidates, or nil when the list is hidden
func (r *Resolver) Suggestions() []models.PlaceCandidate {
	if !r.visible {
		return nil
	}
	return append([]models.PlaceCandidate(nil), r.candidates...)
}

// abort invalidates and cancels the outstanding lookup, if any
func (r *Resolver) abort() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	r.gen++
}

func (r *Resolver) hide() {
	r.candidates = nil
	r.visible = false
}
