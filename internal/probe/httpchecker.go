package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/statuskeep/statusd/internal/domain"
)

// HTTPChecker probes a URL with a single GET request, following redirects,
// bounded by the client timeout.
type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Status: domain.StatusDown, Error: fmt.Sprintf("Error: %v", err)}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	lat := time.Since(start).Seconds() * 1000 // ms
	code := resp.StatusCode

	if code >= 200 && code < 400 {
		return Result{Status: domain.StatusUp, LatencyMS: &lat, Code: &code}
	}
	return Result{
		Status:    domain.StatusDegraded,
		LatencyMS: &lat,
		Code:      &code,
		Error:     fmt.Sprintf("HTTP %d", code),
	}
}

func classifyTransportError(err error) Result {
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return Result{Status: domain.StatusDown, Error: "Connection timeout"}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return Result{Status: domain.StatusDown, Error: fmt.Sprintf("Connection error: %v", err)}
	}

	return Result{Status: domain.StatusDown, Error: fmt.Sprintf("Error: %v", err)}
}
