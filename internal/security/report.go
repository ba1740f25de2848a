// Package security builds a static posture report from the client
// configuration so hosts can surface or log their effective protections.
package security

import "time"

// Report summarizes the protections a configured client enforces.
type Report struct {
	RateLimitingActive   bool
	MaxLoginAttempts     int
	LoginWindow          time.Duration
	CSRFProtectionActive bool
	MFAMethods           []string
	MFASessionTTL        time.Duration
	RefreshCoalescing    bool
	ProactiveRefresh     bool
	ExpiryLeeway         time.Duration
	DistributedState     bool
	AuditActive          bool
	MetricsActive        bool
}

// ReportInput carries the configuration facts the report derives from.
type ReportInput struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
	MFAMethods       []string
	MFASessionTTL    time.Duration
	ExpiryLeeway     time.Duration
	RedisBacked      bool
	AuditEnabled     bool
	MetricsEnabled   bool
}

func BuildReport(input ReportInput) Report {
	methods := make([]string, len(input.MFAMethods))
	copy(methods, input.MFAMethods)

	return Report{
		RateLimitingActive:   input.MaxLoginAttempts > 0 && input.LoginWindow > 0,
		MaxLoginAttempts:     input.MaxLoginAttempts,
		LoginWindow:          input.LoginWindow,
		CSRFProtectionActive: true,
		MFAMethods:           methods,
		MFASessionTTL:        input.MFASessionTTL,
		RefreshCoalescing:    true,
		ProactiveRefresh:     input.ExpiryLeeway > 0,
		ExpiryLeeway:         input.ExpiryLeeway,
		DistributedState:     input.RedisBacked,
		AuditActive:          input.AuditEnabled,
		MetricsActive:        input.MetricsEnabled,
	}
}
