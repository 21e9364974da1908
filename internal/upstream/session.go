package upstream

import (
	"net/http"
	"time"
)

/*
Session is the upstream site's cookie state.

Lifecycle:
  - created empty at startup
  - replaced wholesale after each successful route-list request
    (the bootstrap or a forced cookie refresh)
  - read by every other request

A Session value is immutable; Merge returns a new one. The owner decides
when to swap it in, under its own lock.
*/
type Session struct {
	cookies []*http.Cookie
}

func NewSession(cookies []*http.Cookie) Session {
	return Session{}.Merge(cookies)
}

func (s Session) IsEmpty() bool {
	return len(s.cookies) == 0
}

func (s Session) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}

// Merge overlays fresh cookies by name. A cookie that the server expired
// (MaxAge < 0 or Expires in the past) removes the stored one.
func (s Session) Merge(fresh []*http.Cookie) Session {
	byName := make(map[string]*http.Cookie, len(s.cookies)+len(fresh))
	order := make([]string, 0, len(s.cookies)+len(fresh))

	for _, c := range s.cookies {
		byName[c.Name] = c
		order = append(order, c.Name)
	}
	now := time.Now()
	for _, c := range fresh {
		if c == nil || c.Name == "" {
			continue
		}
		if _, seen := byName[c.Name]; !seen {
			order = append(order, c.Name)
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			byName[c.Name] = nil
			continue
		}
		byName[c.Name] = &http.Cookie{Name: c.Name, Value: c.Value}
	}

	merged := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		if c := byName[name]; c != nil {
			merged = append(merged, c)
			byName[name] = nil
		}
	}
	return Session{cookies: merged}
}
