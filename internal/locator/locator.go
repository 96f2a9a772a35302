// Package locator evaluates ordered selector fallbacks against a live page.
// Markup varies across desktop and mobile layouts and over time, so the
// fallback order is data, not a chain of conditionals: adding a new variant
// means appending a candidate, not a code path.
package locator

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

var (
	// ErrNotFound is a normal, recoverable outcome. Callers branch on it.
	ErrNotFound = errors.New("no selector candidate matched")
	// ErrTimedOut reports that no candidate matched within the deadline.
	ErrTimedOut = errors.New("timed out waiting for selector candidate")
)

// Kind selects how a candidate value is interpreted.
type Kind int

const (
	// KindCSS matches a CSS selector.
	KindCSS Kind = iota
	// KindText matches elements by their visible text.
	KindText
)

// Candidate is one way to locate a semantic target.
type Candidate struct {
	Kind  Kind
	Value string
}

// Strategy is an ordered list of alternative ways to locate the same
// semantic UI element. Candidates are tried in order; the first that
// matches at least one element wins.
type Strategy struct {
	Target     string
	Candidates []Candidate
}

// Page is the slice of playwright.Page the locator needs.
type Page interface {
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
}

// selector renders the candidate as a playwright selector string.
func (c Candidate) selector() string {
	if c.Kind == KindText {
		return fmt.Sprintf("text=%s", c.Value)
	}
	return c.Value
}

// Find evaluates the strategy's candidates in order and returns the first
// that matches at least one element. No match returns ErrNotFound; that is
// an expected result, not a failure of the page.
func Find(page Page, s Strategy) (playwright.Locator, error) {
	for _, c := range s.Candidates {
		loc := page.Locator(c.selector())
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		return loc.First(), nil
	}
	return nil, fmt.Errorf("%s: %w", s.Target, ErrNotFound)
}

// WaitFor polls Find until a candidate matches or the timeout elapses.
// Used for elements that render asynchronously after navigation.
func WaitFor(page Page, s Strategy, timeout time.Duration) (playwright.Locator, error) {
	deadline := time.Now().Add(timeout)

	for {
		loc, err := Find(page, s)
		if err == nil {
			return loc, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s after %v: %w", s.Target, timeout, ErrTimedOut)
		}
		time.Sleep(250 * time.Millisecond)
	}
}
