package planner

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"filltrip/internal/directions"
	"filltrip/internal/geocoding"
	"filltrip/internal/geolocation"
	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

// MyLocationLabel is the Start label after a successful geolocation
const MyLocationLabel = "My location"

// Defaults used when Options leaves a field zero
const (
	DefaultDebounce         = 450 * time.Millisecond
	DefaultMinQueryLength   = 3
	DefaultSearchLimit      = 5
	DefaultMobileBreakpoint = 768
)

// ErrClosed is returned by Dispatch and Send after Close
var ErrClosed = errors.New("planner closed")

// Options configures a Controller
type Options struct {
	Geocoder geocoding.Geocoder
	Fetcher  directions.Fetcher
	// Locator serves Locate events. Nil makes Locate report an error;
	// hosts may still send LocationFound/LocationFailed themselves.
	Locator geolocation.Locator

	Debounce         time.Duration
	MinQueryLength   int
	SearchLimit      int
	MobileBreakpoint int
	// InitialWidth is the viewport width at mount; zero assumes desktop
	InitialWidth int

	Logger *zap.Logger
}

// Controller owns the planner state and applies events on a single loop
// goroutine. Asynchronous lookups post their results back onto the loop.
type Controller struct {
	id   string
	opts Options
	log  *zap.Logger

	store     *EndpointStore
	resolvers map[models.Role]*Resolver
	routes    *RouteService
	mapView   *MapView

	route       *models.Route
	pickMode    models.Role
	sidebarOpen bool
	width       int
	alert       string
	locating    bool

	inbox chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	view    View
	subs    map[int]chan View
	nextSub int
}

// New creates a controller and starts its loop
func New(opts Options) (*Controller, error) {
	if opts.Geocoder == nil {
		return nil, errors.New("planner: geocoder is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("planner: route fetcher is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinQueryLength <= 0 {
		opts.MinQueryLength = DefaultMinQueryLength
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.MobileBreakpoint <= 0 {
		opts.MobileBreakpoint = DefaultMobileBreakpoint
	}
	if opts.InitialWidth <= 0 {
		opts.InitialWidth = opts.MobileBreakpoint
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:          uuid.NewString(),
		opts:        opts,
		store:       NewEndpointStore(),
		mapView:     NewMapView(),
		pickMode:    models.RoleStart,
		width:       opts.InitialWidth,
		sidebarOpen: opts.InitialWidth >= opts.MobileBreakpoint,
		inbox:       make(chan func(), 64),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		subs:        make(map[int]chan View),
	}
	c.log = opts.Logger.Named("planner").With(zap.String("planner_id", c.id))
	c.routes = newRouteService(ctx, opts.Fetcher, c.post, c.log.Named("route"))

	c.resolvers = make(map[models.Role]*Resolver, 2)
	for _, role := range []models.Role{models.RoleStart, models.RoleEnd} {
		c.resolvers[role] = newResolver(resolverConfig{
			role:     role,
			geocoder: opts.Geocoder,
			debounce: opts.Debounce,
			limit:    opts.SearchLimit,
			minLen:   opts.MinQueryLength,
			onSelect: func(coords models.Coordinates, name string) { c.store.Set(role, coords, name) },
			post:     c.post,
			ctx:      ctx,
			log:      c.log.Named("search"),
		})
	}

	c.store.Subscribe(c.mapView.OnChange)
	c.store.Subscribe(c.onEndpointsChanged)

	c.view = c.snapshot(0)
	metrics.ActivePlanners.Inc()
	go c.loop()
	return c, nil
}

// ID identifies this planner session
func (c *Controller) ID() string { return c.id }

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.inbox:
			fn()
			c.publish()
		case <-c.quit:
			for _, r := range c.resolvers {
				r.Close()
			}
			c.routes.Invalidate()
			return
		}
	}
}

// post queues fn for the loop. It gives up once the controller is closed.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.quit:
	}
}

// Dispatch queues ev without waiting for it to be applied. Rejections
// are logged.
func (c *Controller) Dispatch(ev Event) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	c.post(func() {
		if err := c.apply(ev); err != nil {
			c.log.Info("event rejected", zap.String("event", ev.Name()), zap.Error(err))
		}
	})
	return nil
}

// Send applies ev and returns the resulting view
func (c *Controller) Send(ev Event) (View, error) {
	type result struct {
		view View
		err  error
	}
	res := make(chan result, 1)

	select {
	case <-c.quit:
		return View{}, ErrClosed
	case c.inbox <- func() {
		err := c.apply(ev)
		c.publish()
		res <- result{view: c.View(), err: err}
	}:
	}

	select {
	case r := <-res:
		return r.view, r.err
	case <-c.done:
		return View{}, ErrClosed
	}
}

func (c *Controller) apply(ev Event) error {
	metrics.PlannerEventsTotal.WithLabelValues(ev.Name()).Inc()
	c.log.Debug("event", zap.String("event", ev.Name()))
	return ev.apply(c)
}

// Close stops the loop and cancels in-flight lookups
func (c *Controller) Close() {
	c.once.Do(func() {
		close(c.quit)
		<-c.done
		c.cancel()

		c.mu.Lock()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.mu.Unlock()
		metrics.ActivePlanners.Dec()
	})
}

// View returns the latest published view
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Subscribe returns a channel receiving every new view. Slow readers only
// see the latest view. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan View, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan View, 1)
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.view

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			close(ch)
			delete(c.subs, id)
		}
	}
}

func (c *Controller) publish() {
	c.mu.RLock()
	prev := c.view
	c.mu.RUnlock()

	next := c.snapshot(prev.Version)
	if reflect.DeepEqual(prev, next) {
		return
	}
	next.Version = prev.Version + 1

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = next
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

func (c *Controller) resolver(event string, role models.Role) (*Resolver, error) {
	r, ok := c.resolvers[role]
	if !ok {
		return nil, &ErrInvalidEvent{Type: event, Reason: "unknown role " + string(role)}
	}
	return r, nil
}

// onEndpointsChanged keeps the route in step with the endpoints. Every
// mutation that leaves both endpoints set requests exactly one fetch.
func (c *Controller) onEndpointsChanged(ch Change) {
	if !ch.Snapshot.Complete() {
		c.routes.Invalidate()
		c.route = nil
		c.mapView.ClearRoute()
		return
	}
	c.routes.Request(*ch.Snapshot.Start.Coords, *ch.Snapshot.End.Coords, c.showRoute)
}

func (c *Controller) showRoute(r *models.Route) {
	c.route = r
	c.mapView.ShowRoute(r, c.layout())
}

func (c *Controller) layout() Layout {
	return Layout{SidebarOpen: c.sidebarOpen, Mobile: c.mobile()}
}

func (c *Controller) mobile() bool {
	return c.width < c.opts.MobileBreakpoint
}

// resize collapses an open sidebar when crossing into mobile width. The
// reverse crossing leaves it alone.
func (c *Controller) resize(width int) {
	wasMobile := c.mobile()
	c.width = width
	if !wasMobile && c.mobile() && c.sidebarOpen {
		c.sidebarOpen = false
	}
}

func (c *Controller) locate() {
	if c.locating {
		return
	}
	if c.opts.Locator == nil {
		c.alert = "Unable to get your location: geolocation is not available"
		return
	}

	c.locating = true
	locator := c.opts.Locator
	go func() {
		coords, err := locator.Locate(c.ctx, true)
		c.post(func() {
			var ev Event = LocationFound{Coords: coords}
			if err != nil {
				ev = LocationFailed{Message: err.Error()}
			}
			if err := c.apply(ev); err != nil {
				c.log.Warn("location result rejected", zap.Error(err))
			}
		})
	}()
}
