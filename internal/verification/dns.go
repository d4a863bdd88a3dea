package verification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

const dnsRecordPrefix = "_scrapesafe."

// CheckDNS looks for the challenge token in a TXT record at
// _scrapesafe.<domain>. Resolver errors, including NXDOMAIN and empty
// answers, are reported as negative results rather than failures.
func (c *Checker) CheckDNS(ctx context.Context, domain, expectedToken string) Result {
	name := dnsRecordPrefix + domain

	records, err := c.resolver.LookupTXT(ctx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && (dnsErr.IsNotFound || dnsErr.Err == "no such host") {
			return Result{Details: fmt.Sprintf("no TXT record found at %s", name)}
		}
		return Result{Details: fmt.Sprintf("TXT lookup for %s failed: %v", name, err)}
	}
	if len(records) == 0 {
		return Result{Details: fmt.Sprintf("no TXT record found at %s", name)}
	}

	for _, record := range records {
		if record == expectedToken || strings.Contains(record, expectedToken) {
			return Result{
				Found:   true,
				Valid:   true,
				Details: fmt.Sprintf("token found in TXT record at %s", name),
				Raw:     record,
			}
		}
	}
	return Result{
		Details: fmt.Sprintf("%d TXT record(s) at %s, none contained the token", len(records), name),
		Raw:     records,
	}
}
