// Package resolve provides the name resolvers used to turn host names
// into ping targets: an explicit nameserver client, a cache and a rate
// limiter, which can be stacked.
package resolve

import (
	"context"
	"net/netip"

	"golang.org/x/time/rate"
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Limited paces lookups of the next resolver.
type Limited struct {
	next    Resolver
	limiter *rate.Limiter
}

// Limit returns a resolver doing at most perSecond lookups per second
// through next, with bursts of burst lookups.
func Limit(next Resolver, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (l *Limited) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.LookupNetIP(ctx, network, host)
}
