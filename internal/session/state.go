// Package session decides whether a saved browser storage state can still be
// used to open the reader's notebook.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"highlightsync/internal/errs"
)

// Cookie is the part of a storage-state cookie that matters for validity.
// Expires is Unix seconds; zero or negative marks a session cookie.
type Cookie struct {
	Name    string  `json:"name"`
	Domain  string  `json:"domain"`
	Expires float64 `json:"expires"`
}

type State struct {
	Cookies []Cookie          `json:"cookies"`
	Origins []json.RawMessage `json:"origins"`
}

var (
	ErrNoFile       = errors.New("storage state file not found")
	ErrNoCookies    = errors.New("storage state has no cookies")
	ErrCookieExpiry = errors.New("storage state has an expired cookie")
)

// Check returns nil when the storage state at path is usable at now.
// Every failure wraps errs.ErrNoSession and is classified fatal.
func Check(path string, now time.Time) error {
	st, err := Load(path)
	if err != nil {
		return err
	}
	return st.Validate(now)
}

func Load(path string) (State, error) {
	var st State
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, unusable(fmt.Errorf("%w: %s", ErrNoFile, path))
	}
	if err != nil {
		return st, unusable(err)
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, unusable(fmt.Errorf("decode %s: %w", path, err))
	}
	return st, nil
}

// Validate fails when there are no cookies or any cookie with an expiry has
// passed it.
func (s State) Validate(now time.Time) error {
	if len(s.Cookies) == 0 {
		return unusable(ErrNoCookies)
	}
	ts := float64(now.Unix())
	for _, c := range s.Cookies {
		if c.Expires > 0 && c.Expires < ts {
			return unusable(fmt.Errorf("%w: %s", ErrCookieExpiry, c.Name))
		}
	}
	return nil
}

// EarliestExpiry returns the soonest expiry among persistent cookies.
func (s State) EarliestExpiry() (time.Time, bool) {
	var min float64
	for _, c := range s.Cookies {
		if c.Expires > 0 && (min == 0 || c.Expires < min) {
			min = c.Expires
		}
	}
	if min == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(min), 0), true
}

func unusable(err error) error {
	return errs.WrapFatal(fmt.Errorf("%w: %w", errs.ErrNoSession, err), "session check")
}
