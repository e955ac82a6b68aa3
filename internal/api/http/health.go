package http

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slovo-lang/slovo/internal/metrics"
	"github.com/slovo-lang/slovo/internal/resilience"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

// Error-rate thresholds for the errors check.
const (
	errorRateWarn = 0.05
	errorRateFail = 0.10
)

// Memory thresholds, heap used as a fraction of heap reserved.
const (
	memoryWarn = 0.80
	memoryFail = 0.95
)

// HealthCheck is one named check, computed fresh on every request.
type HealthCheck struct {
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Duration float64 `json:"duration"`
}

type healthResponse struct {
	Status    string        `json:"status"`
	Uptime    float64       `json:"uptime"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

type readyResponse struct {
	Ready           bool           `json:"ready"`
	Timestamp       time.Time      `json:"timestamp"`
	CircuitBreakers map[string]int `json:"circuitBreakers"`
}

func (s *Server) handleHealth(c *gin.Context) {
	checks := []HealthCheck{
		runCheck("memory", s.checkMemory),
		runCheck("cpu", s.checkCPU),
		runCheck("cache", s.checkCache),
		runCheck("errors", s.checkErrors),
	}

	overall := statusPass
	for _, check := range checks {
		switch check.Status {
		case statusFail:
			overall = statusFail
		case statusWarn:
			if overall != statusFail {
				overall = statusWarn
			}
		}
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:    overallLabel(overall),
		Uptime:    s.col.Uptime(),
		Timestamp: time.Now(),
		Version:   s.version,
		Checks:    checks,
	})
}

func (s *Server) handleReady(c *gin.Context) {
	counts := map[string]int{
		"open":     0,
		"halfOpen": 0,
		"closed":   0,
	}
	total := 0
	if s.breakers != nil {
		for _, status := range s.breakers.AllStatus() {
			total++
			switch status.State {
			case resilience.StateOpen.String():
				counts["open"]++
			case resilience.StateHalfOpen.String():
				counts["halfOpen"]++
			default:
				counts["closed"]++
			}
		}
	}
	counts["total"] = total

	c.JSON(http.StatusOK, readyResponse{
		Ready:           counts["open"] == 0,
		Timestamp:       time.Now(),
		CircuitBreakers: counts,
	})
}

// runCheck times one check; a check never fails the request itself.
func runCheck(name string, fn func() (string, string)) HealthCheck {
	start := time.Now()
	status, message := fn()
	return HealthCheck{
		Name:     name,
		Status:   status,
		Message:  message,
		Duration: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

func (s *Server) checkMemory() (string, string) {
	used := metrics.HeapPercent()
	message := fmt.Sprintf("heap at %.1f%%", used*100)
	switch {
	case used > memoryFail:
		return statusFail, message
	case used > memoryWarn:
		return statusWarn, message
	default:
		return statusPass, message
	}
}

func (s *Server) checkCPU() (string, string) {
	load := metrics.ReadLoadAverages()
	cores := float64(runtime.NumCPU())
	perCore := load[0] / cores
	message := fmt.Sprintf("load %.2f over %d cores", load[0], runtime.NumCPU())
	switch {
	case perCore > 2:
		return statusFail, message
	case perCore > 1:
		return statusWarn, message
	default:
		return statusPass, message
	}
}

func (s *Server) checkCache() (string, string) {
	rate := s.col.CacheHitRate()
	return statusPass, fmt.Sprintf("cache hit rate %.1f%%", rate*100)
}

func (s *Server) checkErrors() (string, string) {
	rate := s.col.ErrorRate()
	message := fmt.Sprintf("error rate %.1f%%", rate*100)
	switch {
	case rate > errorRateFail:
		return statusFail, message
	case rate > errorRateWarn:
		return statusWarn, message
	default:
		return statusPass, message
	}
}

func overallLabel(status string) string {
	switch status {
	case statusFail:
		return "unhealthy"
	case statusWarn:
		return "degraded"
	default:
		return "healthy"
	}
}
