// Package mx checks whether a domain publishes mail exchangers.
package mx

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
)

// ResolvConfPath is where system resolvers are read from when none are
// configured.
const ResolvConfPath = "/etc/resolv.conf"

// ErrNoResolver is returned by Lookup when no DNS server is configured.
var ErrNoResolver = eris.New("mx: no resolver configured")

// Checker reports a verification status for a domain.
type Checker interface {
	Check(ctx context.Context, domain string) model.VerificationStatus
}

// Validator queries MX records over DNS. A Validator is safe for concurrent
// use; every lookup builds its own message.
type Validator struct {
	client  *dns.Client
	servers []string
}

// NewValidator builds a Validator from config. When cfg.Servers is empty the
// system resolvers from /etc/resolv.conf are used; if that file cannot be
// read the Validator has no servers and reports unknown for every domain.
func NewValidator(cfg config.MXConfig) *Validator {
	servers := normalizeServers(cfg.Servers)
	if len(servers) == 0 {
		servers = systemServers(ResolvConfPath)
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2500 * time.Millisecond
	}
	return &Validator{
		client:  &dns.Client{Net: "udp", Timeout: timeout},
		servers: servers,
	}
}

// Servers returns the DNS servers queried, in order.
func (v *Validator) Servers() []string {
	return append([]string(nil), v.servers...)
}

// Check maps Lookup onto a verification status. Lookup failures read as
// no_mx; only a missing domain or resolver reads as unknown.
func (v *Validator) Check(ctx context.Context, domain string) model.VerificationStatus {
	status, err := v.Lookup(ctx, domain)
	if err != nil {
		if eris.Is(err, ErrNoResolver) {
			return model.VerificationUnknown
		}
		zap.L().Debug("mx: lookup failed", zap.String("domain", domain), zap.Error(err))
		return model.VerificationNoMX
	}
	return status
}

// Lookup queries the servers in order and returns the first definitive
// answer. An error means no server produced one.
func (v *Validator) Lookup(ctx context.Context, domain string) (model.VerificationStatus, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return model.VerificationUnknown, nil
	}
	if len(v.servers) == 0 {
		return model.VerificationUnknown, ErrNoResolver
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range v.servers {
		resp, _, err := v.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			for _, rr := range resp.Answer {
				if _, ok := rr.(*dns.MX); ok {
					return model.VerificationMXPresent, nil
				}
			}
			return model.VerificationNoMX, nil
		case dns.RcodeNameError:
			return model.VerificationNoMX, nil
		default:
			lastErr = eris.Errorf("mx: %s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}
	return model.VerificationNoMX, eris.Wrapf(lastErr, "mx: lookup %s", domain)
}

func normalizeServers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(strings.Trim(s, "[]"), "53")
		}
		out = append(out, s)
	}
	return out
}

func systemServers(path string) []string {
	cc, err := dns.ClientConfigFromFile(path)
	if err != nil {
		zap.L().Warn("mx: no system resolver", zap.String("path", path), zap.Error(err))
		return nil
	}
	out := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		out = append(out, net.JoinHostPort(s, cc.Port))
	}
	return out
}
