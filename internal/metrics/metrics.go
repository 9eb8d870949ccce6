package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submissions counts attendance submissions by outcome:
// recorded, duplicate, rejected, error.
var Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendify_submissions_total",
	Help: "Attendance submissions by outcome.",
}, []string{"result"})

// SessionsCreated counts attendance sessions created by teachers.
var SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "attendify_sessions_created_total",
	Help: "Attendance sessions created.",
})
