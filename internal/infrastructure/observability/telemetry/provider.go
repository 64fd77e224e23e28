package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JoshDFN/ic-commerce/internal/infrastructure/observability"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/observability/oteltrace"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/observability/prometrics"
	obs "github.com/JoshDFN/ic-commerce/internal/observability"
)

// Setup registers the standard metric set on the default Prometheus registry
// and assembles the Observability provider handed to application code.
func Setup(serviceName string, logger obs.Logger) obs.Observability {
	reg := prometrics.New("", "")

	counters := map[obs.MetricKey]obs.Counter{
		obs.MUsecaseRequests: reg.Counter(string(obs.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		obs.MHTTPRequests: reg.Counter(string(obs.MHTTPRequests),
			"Total number of HTTP requests.", "method", "route", "status"),
		obs.MExternalRequests: reg.Counter(string(obs.MExternalRequests),
			"Total number of calls to external collaborators.", "peer", "endpoint", "outcome"),
		obs.MCartReplaced: reg.Counter(string(obs.MCartReplaced),
			"Count of authoritative cart replacements applied to the local projection."),
		obs.MCheckoutCompleted: reg.Counter(string(obs.MCheckoutCompleted),
			"Count of checkout transactions completed from the shopper's perspective.", "outcome"),
	}
	histograms := map[obs.MetricKey]obs.Histogram{
		obs.MUsecaseDuration: reg.Histogram(string(obs.MUsecaseDuration),
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		obs.MHTTPRequestDuration: reg.Histogram(string(obs.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.", prometheus.DefBuckets, "method", "route", "status"),
		obs.MExternalRequestDuration: reg.Histogram(string(obs.MExternalRequestDuration),
			"Duration of external collaborator calls in seconds.", prometheus.DefBuckets, "peer", "endpoint"),
	}

	return observability.New(oteltrace.New(serviceName), logger, counters, histograms)
}
