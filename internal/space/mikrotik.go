// Package space answers "who is in the hackerspace" by matching active
// DHCP leases on the router against the registered MAC addresses of users.
package space

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/f0rthsp4ce/botka/internal/config"
	"github.com/f0rthsp4ce/botka/internal/metrics"
)

// activeWindow is the maximum lease age for a device to count as present.
const activeWindow = 11 * time.Minute

// Lease is one DHCP lease row as returned by the RouterOS REST API.
type Lease struct {
	MACAddress string
	LastSeen   time.Duration
}

func (l *Lease) UnmarshalJSON(data []byte) error {
	var raw struct {
		MACAddress string `json:"mac-address"`
		LastSeen   string `json:"last-seen"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := ParseRouterDuration(raw.LastSeen)
	if err != nil {
		return fmt.Errorf("lease %s: %w", raw.MACAddress, err)
	}
	l.MACAddress = raw.MACAddress
	l.LastSeen = d
	return nil
}

// ParseRouterDuration parses RouterOS durations like "2w3d4h56m23s".
// "never" maps to the maximum duration.
func ParseRouterDuration(s string) (time.Duration, error) {
	if s == "never" {
		return time.Duration(math.MaxInt64), nil
	}
	var (
		total time.Duration
		num   strings.Builder
	)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			num.WriteRune(r)
			continue
		}
		if num.Len() == 0 {
			return 0, fmt.Errorf("invalid router duration %q", s)
		}
		n, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid router duration %q: %w", s, err)
		}
		num.Reset()
		var unit time.Duration
		switch r {
		case 'w':
			unit = 7 * 24 * time.Hour
		case 'd':
			unit = 24 * time.Hour
		case 'h':
			unit = time.Hour
		case 'm':
			unit = time.Minute
		case 's':
			unit = time.Second
		default:
			return 0, fmt.Errorf("invalid router duration unit %q in %q", r, s)
		}
		total += time.Duration(n) * unit
	}
	if num.Len() != 0 {
		return 0, fmt.Errorf("invalid router duration %q: trailing number", s)
	}
	return total, nil
}

// RouterClient fetches DHCP leases from a MikroTik router.
type RouterClient struct {
	cfg    config.MikroTikConfig
	client *http.Client
}

func NewRouterClient(cfg config.MikroTikConfig) *RouterClient {
	return &RouterClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Leases lists all DHCP leases. The result of the call is reflected in the
// mikrotik service gauge.
func (r *RouterClient) Leases(ctx context.Context) (leases []Lease, err error) {
	defer func() { metrics.UpdateService("mikrotik", err == nil) }()

	body, err := json.Marshal(map[string]any{
		".proplist": []string{"mac-address", "last-seen"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode lease request: %w", err)
	}

	url := fmt.Sprintf("https://%s/rest/ip/dhcp-server/lease/print", r.cfg.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build lease request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.cfg.Username, r.cfg.Password)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch leases: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&leases); err != nil {
		return nil, fmt.Errorf("decode leases: %w", err)
	}
	return leases, nil
}

// ActiveMACs returns the MAC addresses seen within the activity window.
func ActiveMACs(leases []Lease) []string {
	var out []string
	for _, l := range leases {
		if l.LastSeen < activeWindow {
			out = append(out, strings.ToUpper(l.MACAddress))
		}
	}
	return out
}
