package httptransport

import "expvar"

var (
	metricLoginTotal  = expvar.NewInt("login_total")
	metricLoginErrors = expvar.NewInt("login_errors_total")

	metricRecruitTotal  = expvar.NewInt("recruit_total")
	metricRecruitErrors = expvar.NewInt("recruit_errors_total")

	metricWheelSpinTotal  = expvar.NewInt("wheel_spin_total")
	metricWheelSpinErrors = expvar.NewInt("wheel_spin_errors_total")

	metricSessionStartTotal  = expvar.NewInt("session_start_total")
	metricSessionStartErrors = expvar.NewInt("session_start_errors_total")

	metricSessionResolveTotal  = expvar.NewInt("session_resolve_total")
	metricSessionResolveErrors = expvar.NewInt("session_resolve_errors_total")
)
