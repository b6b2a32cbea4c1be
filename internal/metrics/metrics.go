// Package metrics exposes operation counters for the attendance service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus counters.
type Metrics struct {
	CodeRequests     prometheus.Counter
	CodesValidated   prometheus.Counter
	CheckinsRecorded prometheus.Counter
	CommentsAppended prometheus.Counter
	UsersProvisioned prometheus.Counter
	ExportsGenerated prometheus.Counter
	CheckinsRejected prometheus.Counter
}

// New creates and registers all metrics against reg. Tests pass a fresh
// registry; main passes the default one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CodeRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_code_requests_total",
			Help: "Total number of daily-code fetches served to admins",
		}),
		CodesValidated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_codes_validated_total",
			Help: "Total number of successful daily-code validations",
		}),
		CheckinsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_checkins_recorded_total",
			Help: "Total number of attendance check-ins stored",
		}),
		CommentsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_comments_appended_total",
			Help: "Total number of audit comments appended to records",
		}),
		UsersProvisioned: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_users_provisioned_total",
			Help: "Total number of users provisioned",
		}),
		ExportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_exports_generated_total",
			Help: "Total number of CSV exports generated",
		}),
		CheckinsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_checkins_rejected_total",
			Help: "Total number of check-in submissions rejected",
		}),
	}
}
