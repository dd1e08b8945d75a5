package httpclient

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsPolicy fetches and caches one robots.txt group per host, lazily
// on the first request to that host. It fails open: an unreachable or
// unparsable robots.txt allows everything.
type RobotsPolicy struct {
	UserAgent string
	fetch     func(url string) (*http.Response, error)

	mu     sync.RWMutex
	groups map[string]*robotstxt.Group
}

// NewRobotsPolicy builds a RobotsPolicy using fetch (normally an
// *http.Client.Get-shaped function) to retrieve robots.txt bodies.
func NewRobotsPolicy(userAgent string, fetch func(url string) (*http.Response, error)) *RobotsPolicy {
	return &RobotsPolicy{
		UserAgent: userAgent,
		fetch:     fetch,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether target may be fetched, per the cached
// robots.txt group for target's host.
func (p *RobotsPolicy) Allowed(target *url.URL) bool {
	group := p.groupFor(target)
	if group == nil {
		return true
	}
	return group.Test(target.RequestURI())
}

func (p *RobotsPolicy) groupFor(target *url.URL) *robotstxt.Group {
	host := target.Scheme + "://" + target.Host

	p.mu.RLock()
	g, cached := p.groups[host]
	p.mu.RUnlock()
	if cached {
		return g
	}

	g = p.fetchGroup(host)
	p.mu.Lock()
	p.groups[host] = g
	p.mu.Unlock()
	return g
}

func (p *RobotsPolicy) fetchGroup(host string) *robotstxt.Group {
	resp, err := p.fetch(host + "/robots.txt")
	if err != nil || resp == nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(p.UserAgent)
}
