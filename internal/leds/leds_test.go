package leds

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeIndicator struct {
	states []bool
	err    error
}

func (f *fakeIndicator) SetThrobber(on bool) error {
	if f.err != nil {
		return f.err
	}
	f.states = append(f.states, on)
	return nil
}

func newRegistry() (*Registry, *fakeIndicator) {
	ind := &fakeIndicator{}
	return NewRegistry(log.New(io.Discard, "", 0), ind), ind
}

func TestAddRemove(t *testing.T) {
	r, _ := newRegistry()

	r.Add("mail", "1")
	r.Add("mail", "1")
	r.Add("sms", "7")
	if diff := cmp.Diff([]string{"mail/1", "sms/7"}, r.Requests()); diff != "" {
		t.Errorf("Requests mismatch (-want +got):\n%s", diff)
	}

	r.Remove("mail", "1")
	r.Remove("mail", "unknown")
	if !r.Active() {
		t.Fatalf("Expected sms request active")
	}
	r.Remove("sms", "7")
	if r.Active() {
		t.Errorf("Expected no active requests")
	}
}

func TestAnimationRequiresRequest(t *testing.T) {
	r, ind := newRegistry()

	r.SetAnimating(true)
	if r.Animating() || len(ind.states) != 0 {
		t.Fatalf("Animated without requests")
	}

	r.Add("mail", "1")
	r.SetAnimating(true)
	r.SetAnimating(true)
	r.Clear()
	r.SetAnimating(false)
	if diff := cmp.Diff([]bool{true, false}, ind.states); diff != "" {
		t.Errorf("Throbber states mismatch (-want +got):\n%s", diff)
	}
}

func TestIndicatorFailureKeepsState(t *testing.T) {
	r, ind := newRegistry()
	ind.err = errors.New("gpio busy")

	r.Add("mail", "1")
	r.SetAnimating(true)
	if r.Animating() {
		t.Errorf("Reported animating after indicator failure")
	}
}
