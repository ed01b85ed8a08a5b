package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver maps an overlay hostname to an IPv4 address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// DNSResolver queries the competition's DNS server for A records.
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver creates a resolver against server, which may omit the
// port (53 is assumed).
func NewDNSResolver(server string) *DNSResolver {
	if !strings.Contains(server, ":") {
		server += ":53"
	}
	return &DNSResolver{
		server: server,
		client: &dns.Client{Timeout: 5 * time.Second},
	}
}

// Resolve returns the first A record for host.
func (r *DNSResolver) Resolve(ctx context.Context, host string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", fmt.Errorf("query %s for %s: %w", r.server, host, err)
	}
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("no A record for %s", host)
}
