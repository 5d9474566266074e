package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// CheckoutMetrics is returned by GET /v1/metrics/checkout.
type CheckoutMetrics struct {
	ActiveSessions  int64   `json:"activeSessions"`
	PixCharges      int64   `json:"pixCharges"`
	CardCharges     int64   `json:"cardCharges"`
	Confirmed       int64   `json:"confirmed"`
	Failed          int64   `json:"failed"`
	PollTimeouts    int64   `json:"pollTimeouts"`
	Redirects       int64   `json:"redirects"`
	GatewayErrors   int64   `json:"gatewayErrors"`
	ConfirmationPct float64 `json:"confirmationRate"`
	Period          string  `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
