package devicelink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// DiscoveryConfig controls the mDNS lookup of the controller.
type DiscoveryConfig struct {
	Service string
	Domain  string
	Timeout time.Duration

	browseFn browseFunc
}

func (c DiscoveryConfig) withDefaults() DiscoveryConfig {
	out := c
	if out.Service == "" {
		out.Service = "_physioctl._tcp"
	}
	if out.Domain == "" {
		out.Domain = "local."
	}
	if out.Timeout <= 0 {
		out.Timeout = 3 * time.Second
	}
	return out
}

// DiscoveryResolver finds the controller over mDNS on every (re)connect.
// TXT records may carry path=/ws and scheme=wss.
func DiscoveryResolver(cfg DiscoveryConfig) Resolver {
	cfg = cfg.withDefaults()
	return func(ctx context.Context) (string, error) {
		browse := cfg.browseFn
		if browse == nil {
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				return "", fmt.Errorf("create mdns resolver: %w", err)
			}
			browse = resolver.Browse
		}

		scanCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		entries := make(chan *zeroconf.ServiceEntry, 8)
		if err := browse(scanCtx, cfg.Service, cfg.Domain, entries); err != nil {
			return "", fmt.Errorf("browse %s: %w", cfg.Service, err)
		}

		for {
			select {
			case <-scanCtx.Done():
				return "", errors.New("no device controller found on the local network")
			case entry := <-entries:
				if entry == nil {
					continue
				}
				if url, ok := entryURL(entry); ok {
					return url, nil
				}
			}
		}
	}
}

// FirstOf tries each resolver in order and returns the first URL found.
func FirstOf(resolvers ...Resolver) Resolver {
	return func(ctx context.Context) (string, error) {
		var errs []error
		for _, resolve := range resolvers {
			url, err := resolve(ctx)
			if err == nil {
				return url, nil
			}
			errs = append(errs, err)
		}
		return "", errors.Join(errs...)
	}
}

func entryURL(entry *zeroconf.ServiceEntry) (string, bool) {
	if entry.Port <= 0 {
		return "", false
	}
	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return "", false
	}

	txt := txtToMap(entry.Text)
	scheme := txt["scheme"]
	if scheme != "wss" {
		scheme = "ws"
	}
	path := txt["path"]
	if path == "" {
		path = "/ws"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(entry.Port)) + path, true
}

func txtToMap(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, record := range records {
		key, value, ok := strings.Cut(record, "=")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return out
}
