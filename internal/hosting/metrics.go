package hosting

import (
	"strconv"

	"github.com/google/go-github/v57/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestsTotal counts hosting API attempts.
// Labels: op, outcome (HTTP status, "ok", or "error" when no response arrived)
var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "repoindexer",
		Subsystem: "hosting",
		Name:      "requests_total",
		Help:      "Total number of hosting API attempts by operation and outcome",
	},
	[]string{"op", "outcome"},
)

func outcomeLabel(resp *github.Response, err error) string {
	if err == nil {
		return "ok"
	}
	if code := statusCode(resp); code != 0 {
		return strconv.Itoa(code)
	}
	return "error"
}
