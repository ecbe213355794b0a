package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mikey/mail-spam-analyzer/internal/metrics"
)

// DefaultServers are used when neither configuration nor resolv.conf name a server
var DefaultServers = []string{"1.1.1.1:53", "8.8.8.8:53"}

// Resolver performs the DNS lookups the analyzer needs
type Resolver interface {
	// LookupAddr returns the PTR names for an IP address
	LookupAddr(ctx context.Context, ip string) ([]string, error)

	// LookupHost returns the IPv4 addresses of a name
	LookupHost(ctx context.Context, host string) ([]string, error)

	// LookupTXT returns the TXT records of a name
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// DNSResolver is a Resolver speaking DNS directly to a list of servers
type DNSResolver struct {
	client  *dns.Client
	servers []string
	timeout time.Duration
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewDNSResolver creates a resolver. At most maxInFlight queries run at once
// and each one is bounded by timeout.
func NewDNSResolver(servers []string, timeout time.Duration, maxInFlight int, logger *zap.Logger, recorder *metrics.Recorder) *DNSResolver {
	if len(servers) == 0 {
		servers = SystemServers()
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		logger:  logger,
		metrics: recorder,
	}
}

// SystemServers returns the nameservers from /etc/resolv.conf, falling back to public resolvers
func SystemServers() []string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return DefaultServers
	}

	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}

// LookupAddr implements Resolver
func (r *DNSResolver) LookupAddr(ctx context.Context, ip string) ([]string, error) {
	reverse, err := dns.ReverseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", ip, err)
	}

	answers, err := r.exchange(ctx, reverse, dns.TypePTR)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, rr := range answers {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no PTR records for %s", ip)
	}
	return names, nil
}

// LookupHost implements Resolver
func (r *DNSResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	answers, err := r.exchange(ctx, host, dns.TypeA)
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, rr := range answers {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no A records for %s", host)
	}
	return addrs, nil
}

// LookupTXT implements Resolver
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	answers, err := r.exchange(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var records []string
	for _, rr := range answers {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	return records, nil
}

// exchange sends one question, trying each server in turn
func (r *DNSResolver) exchange(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	qname := dns.TypeToString[qtype]

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire lookup slot: %w", err)
	}
	defer r.sem.Release(1)

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, err := r.query(ctx, m, server)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s lookup for %s returned %s", qname, name, dns.RcodeToString[resp.Rcode])
			// An authoritative negative answer will not improve on another server
			if resp.Rcode == dns.RcodeNameError {
				break
			}
			continue
		}

		r.metrics.ObserveDNSLookup(qname, "ok")
		return resp.Answer, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no DNS servers configured")
	}
	r.metrics.ObserveDNSLookup(qname, "error")
	if r.logger != nil {
		r.logger.Debug("DNS lookup failed",
			zap.String("name", name),
			zap.String("type", qname),
			zap.Error(lastErr))
	}
	return nil, lastErr
}

// query asks a single server, each with its own timeout
func (r *DNSResolver) query(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, _, err := r.client.ExchangeContext(ctx, m, server)
	return resp, err
}
