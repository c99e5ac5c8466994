// Package filter reads and writes the admin dashboard filter selections kept
// in the URL query string, so a filtered view can be bookmarked or shared.
package filter

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Recognized query parameters
const (
	ParamEvent       = "event"
	ParamPost        = "post"
	ParamStatus      = "status"
	ParamType        = "type"
	ParamSearch      = "search"
	ParamDateStart   = "dateStart"
	ParamDateEnd     = "dateEnd"
	ParamPage        = "page"
	ParamPerPage     = "perPage"
	ParamView        = "view"
	ParamEventActive = "eventActive"
	ParamPostEvent   = "postEvent"
)

const (
	All            = "all"
	DefaultPage    = 1
	DefaultPerPage = 50
	MaxPerPage     = 500
	MaxPage        = 100000
	DefaultView    = "cards"
	DateLayout     = "2006-01-02"
)

// State is the typed view of the filter query string
type State struct {
	Event       string
	Post        string
	Status      string
	Type        string
	Search      string
	DateStart   string
	DateEnd     string
	Page        int
	PerPage     int
	View        string
	EventActive string
	PostEvent   string
}

// Default returns the state of an empty query string
func Default() State {
	return State{
		Event:       All,
		Post:        All,
		Status:      All,
		Type:        All,
		Page:        DefaultPage,
		PerPage:     DefaultPerPage,
		View:        DefaultView,
		EventActive: All,
		PostEvent:   All,
	}
}

// Parse reads v into a State, falling back to defaults for absent or malformed values
func Parse(v url.Values) State {
	s := Default()
	s.Event = stringOr(v, ParamEvent, All)
	s.Post = stringOr(v, ParamPost, All)
	s.Status = stringOr(v, ParamStatus, All)
	s.Type = stringOr(v, ParamType, All)
	s.Search = strings.TrimSpace(v.Get(ParamSearch))
	s.DateStart = v.Get(ParamDateStart)
	s.DateEnd = v.Get(ParamDateEnd)
	s.Page = positiveIntOr(v, ParamPage, DefaultPage)
	if s.Page > MaxPage {
		s.Page = MaxPage
	}
	s.PerPage = positiveIntOr(v, ParamPerPage, DefaultPerPage)
	if s.PerPage > MaxPerPage {
		s.PerPage = MaxPerPage
	}
	s.View = stringOr(v, ParamView, DefaultView)
	s.EventActive = stringOr(v, ParamEventActive, All)
	s.PostEvent = stringOr(v, ParamPostEvent, All)
	return s
}

// Offset of the first row of the current page
func (s State) Offset() int {
	return (s.Page - 1) * s.PerPage
}

// DateRange parses DateStart/DateEnd. The end bound is exclusive and covers
// the whole DateEnd day.
func (s State) DateRange() (start, end *time.Time) {
	if t, err := time.Parse(DateLayout, s.DateStart); err == nil {
		start = &t
	}
	if t, err := time.Parse(DateLayout, s.DateEnd); err == nil {
		t = t.AddDate(0, 0, 1)
		end = &t
	}
	return start, end
}

// PostNumber returns the selected post number, if the post filter holds one
func (s State) PostNumber() (int, bool) {
	if s.Post == All || s.Post == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s.Post)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Active reads the event activity filter; nil selects every event
func (s State) Active() *bool {
	var active bool
	switch s.EventActive {
	case "active", "true":
		active = true
	case "inactive", "false":
	default:
		return nil
	}
	return &active
}

func stringOr(v url.Values, key, def string) string {
	if val := strings.TrimSpace(v.Get(key)); val != "" {
		return val
	}
	return def
}

func positiveIntOr(v url.Values, key string, def int) int {
	n, err := strconv.Atoi(v.Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}
