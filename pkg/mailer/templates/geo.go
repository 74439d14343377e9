package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNoGeo is returned for addresses that cannot be located, such as
// loopback and private ranges.
var ErrNoGeo = errors.New("ip not locatable")

type Geo struct {
	City     string
	Region   string
	Country  string
	Timezone string
}

// String renders "City, Region, Country", skipping blanks.
func (g Geo) String() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{g.City, g.Region, g.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

type GeoResolver interface {
	Lookup(ctx context.Context, ip string) (Geo, error)
}

func publicIP(s string) (net.IP, bool) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return nil, false
	}
	return ip, true
}

// IPAPIResolver looks addresses up on ip-api.com.
type IPAPIResolver struct {
	Client  *http.Client
	BaseURL string // defaults to http://ip-api.com
}

func (r IPAPIResolver) Lookup(ctx context.Context, addr string) (Geo, error) {
	ip, ok := publicIP(addr)
	if !ok {
		return Geo{}, ErrNoGeo
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	base := strings.TrimRight(r.BaseURL, "/")
	if base == "" {
		base = "http://ip-api.com"
	}

	url := fmt.Sprintf("%s/json/%s?fields=status,message,country,regionName,city,timezone", base, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Geo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Geo{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Geo{}, fmt.Errorf("geo lookup: %s", resp.Status)
	}

	var body struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		Country    string `json:"country"`
		RegionName string `json:"regionName"`
		City       string `json:"city"`
		Timezone   string `json:"timezone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Geo{}, err
	}
	if !strings.EqualFold(body.Status, "success") {
		return Geo{}, fmt.Errorf("geo lookup failed: %s", body.Message)
	}
	return Geo{City: body.City, Region: body.RegionName, Country: body.Country, Timezone: body.Timezone}, nil
}

type geoEntry struct {
	geo     Geo
	err     error
	expires time.Time
}

// CachedResolver memoizes lookups per IP, failures included, so a burst of
// mail to one requester costs a single upstream call.
type CachedResolver struct {
	Next GeoResolver
	TTL  time.Duration
	Max  int

	mu      sync.Mutex
	entries map[string]geoEntry
	now     func() time.Time
}

func NewCachedResolver(next GeoResolver, ttl time.Duration, maxEntries int) *CachedResolver {
	return &CachedResolver{Next: next, TTL: ttl, Max: maxEntries, entries: map[string]geoEntry{}, now: time.Now}
}

func (c *CachedResolver) Lookup(ctx context.Context, ip string) (Geo, error) {
	key := strings.TrimSpace(ip)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.geo, e.err
	}
	c.mu.Unlock()

	g, err := c.Next.Lookup(ctx, key)
	if ctx.Err() != nil {
		return g, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Max > 0 && len(c.entries) >= c.Max {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.Max {
			c.entries = map[string]geoEntry{}
		}
	}
	c.entries[key] = geoEntry{geo: g, err: err, expires: now.Add(c.TTL)}
	return g, err
}
