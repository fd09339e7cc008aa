// Package dns checks that a custom domain carries the records the owner
// was asked to create.
package dns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
)

// Expectation is what a correctly configured domain resolves to.
type Expectation struct {
	Name        string
	TXTHost     string
	Token       string
	CNAMETarget string
}

type Checker interface {
	Check(ctx context.Context, exp Expectation) lifecycle.VerificationOutcome
}

// Resolver is the subset of *net.Resolver the checker uses.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
}

type ResolverChecker struct {
	resolver Resolver
	timeout  time.Duration
}

// NewResolverChecker checks with r, or the system resolver when r is nil.
func NewResolverChecker(r Resolver, timeout time.Duration) *ResolverChecker {
	if r == nil {
		r = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResolverChecker{resolver: r, timeout: timeout}
}

// Check looks up the ownership TXT record and the serving CNAME. A failed
// lookup (including a missing record) is reported as LookupErr; records
// that exist with the wrong value are a plain negative result.
func (c *ResolverChecker) Check(ctx context.Context, exp Expectation) lifecycle.VerificationOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	txts, err := c.resolver.LookupTXT(ctx, exp.TXTHost)
	if err != nil {
		return lifecycle.VerificationOutcome{LookupErr: fmt.Errorf("TXT lookup for %s failed: %w", exp.TXTHost, err)}
	}
	if !containsToken(txts, exp.Token) {
		return lifecycle.VerificationOutcome{
			Detail: fmt.Sprintf("TXT record at %s does not contain the verification token", exp.TXTHost),
		}
	}

	cname, err := c.resolver.LookupCNAME(ctx, exp.Name)
	if err != nil {
		return lifecycle.VerificationOutcome{LookupErr: fmt.Errorf("CNAME lookup for %s failed: %w", exp.Name, err)}
	}
	if !sameHost(cname, exp.CNAMETarget) {
		return lifecycle.VerificationOutcome{
			Detail: fmt.Sprintf("%s points to %s, expected %s", exp.Name, strings.TrimSuffix(cname, "."), exp.CNAMETarget),
		}
	}

	return lifecycle.VerificationOutcome{Verified: true}
}

func containsToken(records []string, token string) bool {
	for _, r := range records {
		if strings.TrimSpace(r) == token {
			return true
		}
	}
	return false
}

func sameHost(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}
