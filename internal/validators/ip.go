package validators

import (
	"context"
	"net/netip"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Known anonymizer and hosting ranges. Production deployments replace these
// seed tables with a threat-intel feed; the shapes and flags stay the same.
var (
	torExitPrefixes = mustPrefixes(
		"185.220.100.0/22",
		"185.220.101.0/24",
		"199.87.154.0/24",
		"204.13.164.0/24",
		"171.25.193.0/24",
		"162.247.72.0/24",
	)

	vpnPrefixes = mustPrefixes(
		"146.70.0.0/16",   // Mullvad allocations
		"37.120.128.0/17", // commercial VPN hosting
		"91.219.236.0/22",
		"185.159.156.0/22",
	)

	proxyPrefixes = mustPrefixes(
		"198.8.80.0/20",
		"104.227.0.0/16",
		"191.101.0.0/18",
	)

	datacenterPrefixes = mustPrefixes(
		"13.64.0.0/11",    // Azure
		"34.64.0.0/10",    // GCP
		"3.0.0.0/9",       // AWS
		"52.0.0.0/10",     // AWS
		"104.16.0.0/13",   // Cloudflare
		"159.65.0.0/16",   // DigitalOcean
		"167.99.0.0/16",   // DigitalOcean
		"2600:1f00::/24",  // AWS
		"2a05:d000::/29",  // AWS
	)
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(cidrs))
	for i, c := range cidrs {
		out[i] = netip.MustParsePrefix(c)
	}
	return out
}

// IPValidator classifies client IPs against the anonymizer and datacenter
// prefix tables.
type IPValidator struct{}

// NewIPValidator creates the built-in IP validator.
func NewIPValidator() *IPValidator {
	return &IPValidator{}
}

// ValidateIP parses the address and checks the prefix tables. Private and
// special-purpose addresses are invalid: they cannot be a real client on
// the public internet.
func (v *IPValidator) ValidateIP(ctx context.Context, value string) (*domain.RawResult, error) {
	result := &domain.RawResult{
		Provider: "ip-intel",
		Flags:    map[string]bool{},
	}

	addr, err := netip.ParseAddr(value)
	if err != nil {
		result.ReasonCodes = append(result.ReasonCodes, "unparseable_address")
		return result, nil
	}
	addr = addr.Unmap()

	version := "4"
	if addr.Is6() {
		version = "6"
	}
	result.Attributes = map[string]any{"version": version}

	switch {
	case addr.IsLoopback():
		result.ReasonCodes = append(result.ReasonCodes, "loopback_address")
		return result, nil
	case addr.IsPrivate(), addr.IsLinkLocalUnicast():
		result.ReasonCodes = append(result.ReasonCodes, "private_address")
		return result, nil
	case addr.IsMulticast(), addr.IsUnspecified():
		result.ReasonCodes = append(result.ReasonCodes, "special_purpose_address")
		return result, nil
	}

	result.Valid = true
	if matchAny(torExitPrefixes, addr) {
		result.Flags[domain.FlagTor] = true
		result.ReasonCodes = append(result.ReasonCodes, "tor_exit_node")
	}
	if matchAny(vpnPrefixes, addr) {
		result.Flags[domain.FlagVPN] = true
		result.ReasonCodes = append(result.ReasonCodes, "vpn_range")
	}
	if matchAny(proxyPrefixes, addr) {
		result.Flags[domain.FlagProxy] = true
		result.ReasonCodes = append(result.ReasonCodes, "proxy_range")
	}
	if matchAny(datacenterPrefixes, addr) {
		result.Flags[domain.FlagDatacenter] = true
		result.ReasonCodes = append(result.ReasonCodes, "datacenter_range")
	}
	return result, nil
}

func matchAny(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
