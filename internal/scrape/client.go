package scrape

import (
	"net"
	"net/http"
	"time"

	"github.com/sells-group/leads-cli/internal/config"
)

// NewHTTPClient builds the process-wide HTTP client shared by the resolver,
// the page fetcher and the site profiler. The client timeout bounds each
// request including redirects and body reads.
func NewHTTPClient(cfg config.FetchConfig) *http.Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perHost := cfg.PageConcurrency
	if perHost <= 0 {
		perHost = 4
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: perHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
