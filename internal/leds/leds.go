// Package leds tracks standby LED requests and drives the throbber that
// signals them while the display is dark.
package leds

import (
	"log"
	"sort"
)

// Indicator is the physical standby LED.
type Indicator interface {
	SetThrobber(on bool) error
}

type key struct {
	appID     string
	requestID string
}

// Registry is a set of (appID, requestID) requests. It is not safe for
// concurrent use.
type Registry struct {
	logger    *log.Logger
	indicator Indicator
	requests  map[key]struct{}
	animating bool
}

func NewRegistry(logger *log.Logger, indicator Indicator) *Registry {
	return &Registry{
		logger:    logger,
		indicator: indicator,
		requests:  make(map[key]struct{}),
	}
}

// Add registers a request; re-adding is a no-op.
func (r *Registry) Add(appID, requestID string) {
	k := key{appID, requestID}
	if _, ok := r.requests[k]; ok {
		return
	}
	r.requests[k] = struct{}{}
	r.logger.Printf("Standby LED request %s/%s added (%d active)", appID, requestID, len(r.requests))
}

// Remove drops a request. Unknown requests are ignored.
func (r *Registry) Remove(appID, requestID string) {
	k := key{appID, requestID}
	if _, ok := r.requests[k]; !ok {
		return
	}
	delete(r.requests, k)
	r.logger.Printf("Standby LED request %s/%s removed (%d active)", appID, requestID, len(r.requests))
}

// Clear drops every request.
func (r *Registry) Clear() {
	if len(r.requests) == 0 {
		return
	}
	r.requests = make(map[key]struct{})
	r.logger.Printf("Standby LED requests cleared")
}

func (r *Registry) Active() bool {
	return len(r.requests) > 0
}

// Requests lists the active requests as "appID/requestID", sorted.
func (r *Registry) Requests() []string {
	out := make([]string, 0, len(r.requests))
	for k := range r.requests {
		out = append(out, k.appID+"/"+k.requestID)
	}
	sort.Strings(out)
	return out
}

// SetAnimating switches the throbber. Animation is only started when a
// request is active.
func (r *Registry) SetAnimating(on bool) {
	on = on && r.Active()
	if on == r.animating {
		return
	}
	if r.indicator != nil {
		if err := r.indicator.SetThrobber(on); err != nil {
			r.logger.Printf("Warning: failed to switch standby LED: %v", err)
			return
		}
	}
	r.animating = on
}

func (r *Registry) Animating() bool {
	return r.animating
}
