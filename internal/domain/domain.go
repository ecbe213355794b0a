package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// UnknownName is the name carried by the sentinel domain
const UnknownName = "unknown"

// Relation describes how two domain names sit in the DNS hierarchy
type Relation int

const (
	// Different means the names share no label
	Different Relation = iota
	// CommonAncestor means the names share a parent but neither contains the other
	CommonAncestor
	// Subdomain means the receiver is below the other name
	Subdomain
	// Superdomain means the receiver is above the other name
	Superdomain
	// Equal means both names are the same
	Equal
)

func (r Relation) String() string {
	switch r {
	case CommonAncestor:
		return "common-ancestor"
	case Subdomain:
		return "subdomain"
	case Superdomain:
		return "superdomain"
	case Equal:
		return "equal"
	default:
		return "different"
	}
}

// ResolutionError is returned when a name cannot be resolved to an address
type ResolutionError struct {
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Domain is a canonical (lower-case, fully qualified) domain name
type Domain struct {
	name string
}

// FromString builds a domain from literal text. Empty input yields the sentinel.
func FromString(name string) Domain {
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return Unknown()
	}
	return Domain{name: dns.CanonicalName(name)}
}

// Unknown returns the sentinel domain used when nothing can be extracted
func Unknown() Domain {
	return Domain{name: dns.CanonicalName(UnknownName)}
}

// FromIP reverse-resolves ip. Any failure yields the sentinel domain.
func FromIP(ctx context.Context, r Resolver, ip string) Domain {
	if r == nil {
		return Unknown()
	}
	names, err := r.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return Unknown()
	}
	return FromString(names[0])
}

// Name returns the domain without the trailing root dot
func (d Domain) Name() string {
	if d.name == "" {
		return UnknownName
	}
	return strings.TrimSuffix(d.name, ".")
}

func (d Domain) String() string {
	return d.Name()
}

// IsUnknown reports whether d is the sentinel domain
func (d Domain) IsUnknown() bool {
	return d.name == "" || d == Unknown()
}

// IPAddress resolves the first IPv4 address of the domain
func (d Domain) IPAddress(ctx context.Context, r Resolver) (string, error) {
	if r == nil {
		return "", &ResolutionError{Name: d.Name(), Err: fmt.Errorf("no resolver configured")}
	}
	addrs, err := r.LookupHost(ctx, d.Name())
	if err != nil {
		return "", &ResolutionError{Name: d.Name(), Err: err}
	}
	if len(addrs) == 0 {
		return "", &ResolutionError{Name: d.Name(), Err: fmt.Errorf("no address records")}
	}
	return addrs[0], nil
}

// Relation compares the label hierarchy of d and o
func (d Domain) Relation(o Domain) Relation {
	a, b := d.canonical(), o.canonical()
	common := dns.CompareDomainName(a, b)
	la, lb := dns.CountLabel(a), dns.CountLabel(b)

	switch {
	case common == la && common == lb:
		return Equal
	case common == lb:
		return Subdomain
	case common == la:
		return Superdomain
	case common > 0:
		return CommonAncestor
	default:
		return Different
	}
}

// Equal is deliberately loose: a domain equals its own subdomains and
// superdomains so that mail servers named below the sender domain match.
func (d Domain) Equal(o Domain) bool {
	switch d.Relation(o) {
	case Equal, Subdomain, Superdomain:
		return true
	default:
		return false
	}
}

// IsSubdomain reports whether d is o or lies below it
func (d Domain) IsSubdomain(o Domain) bool {
	rel := d.Relation(o)
	return rel == Equal || rel == Subdomain
}

// IsSuperdomain reports whether d is o or lies above it
func (d Domain) IsSuperdomain(o Domain) bool {
	rel := d.Relation(o)
	return rel == Equal || rel == Superdomain
}

func (d Domain) canonical() string {
	if d.name == "" {
		return Unknown().name
	}
	return d.name
}
