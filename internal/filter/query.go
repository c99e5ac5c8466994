package filter

import (
	"net/url"
	"strconv"
	"strings"
)

// Query rewrites a filter query string. Setting a filter back to its default
// removes the parameter instead of writing the default value, and changing
// any non-pagination filter drops the page so the view restarts at page 1.
type Query struct {
	values url.Values
}

// NewQuery copies v; the caller's values are never mutated
func NewQuery(v url.Values) *Query {
	c := url.Values{}
	for k, vals := range v {
		c[k] = append([]string(nil), vals...)
	}
	return &Query{values: c}
}

// ParseQuery parses a raw query string ("a=b&c=d")
func ParseQuery(raw string) (*Query, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, err
	}
	return &Query{values: v}, nil
}

func (q *Query) Values() url.Values { return q.values }

func (q *Query) State() State { return Parse(q.values) }

// Encode returns the minimal query string
func (q *Query) Encode() string { return q.values.Encode() }

func (q *Query) set(key, value, def string) {
	value = strings.TrimSpace(value)
	if value == "" || value == def {
		q.values.Del(key)
		return
	}
	q.values.Set(key, value)
}

func (q *Query) resetPage() {
	q.values.Del(ParamPage)
}

// SetEvent selects an event and clears the dependent post filter
func (q *Query) SetEvent(eventID string) *Query {
	q.set(ParamEvent, eventID, All)
	q.values.Del(ParamPost)
	q.resetPage()
	return q
}

func (q *Query) SetPost(post string) *Query {
	q.set(ParamPost, post, All)
	q.resetPage()
	return q
}

func (q *Query) SetStatus(status string) *Query {
	q.set(ParamStatus, status, All)
	q.resetPage()
	return q
}

func (q *Query) SetType(t string) *Query {
	q.set(ParamType, t, All)
	q.resetPage()
	return q
}

func (q *Query) SetSearch(search string) *Query {
	q.set(ParamSearch, search, "")
	q.resetPage()
	return q
}

func (q *Query) SetDateRange(start, end string) *Query {
	q.set(ParamDateStart, start, "")
	q.set(ParamDateEnd, end, "")
	q.resetPage()
	return q
}

func (q *Query) SetView(view string) *Query {
	q.set(ParamView, view, DefaultView)
	q.resetPage()
	return q
}

func (q *Query) SetEventActive(active string) *Query {
	q.set(ParamEventActive, active, All)
	q.resetPage()
	return q
}

func (q *Query) SetPostEvent(eventID string) *Query {
	q.set(ParamPostEvent, eventID, All)
	q.resetPage()
	return q
}

// SetPage is the only setter that keeps the rest of the pagination state
func (q *Query) SetPage(page int) *Query {
	if page <= DefaultPage {
		q.values.Del(ParamPage)
		return q
	}
	q.values.Set(ParamPage, strconv.Itoa(page))
	return q
}

func (q *Query) SetPerPage(perPage int) *Query {
	if perPage <= 0 || perPage == DefaultPerPage {
		q.values.Del(ParamPerPage)
	} else {
		q.values.Set(ParamPerPage, strconv.Itoa(perPage))
	}
	q.resetPage()
	return q
}

// Clear drops every parameter
func (q *Query) Clear() *Query {
	q.values = url.Values{}
	return q
}
