package ipc

import "time"

// Phase is the connection lifecycle phase
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhaseBackingOff   Phase = "backing_off"
)

// Health summarises recent connection failures
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthFailed   Health = "failed"
)

// ConnectionState is owned by the Manager; callers only ever see copies
type ConnectionState struct {
	Phase                 Phase     `json:"phase"`
	Health                Health    `json:"health"`
	ConsecutiveFailures   int       `json:"consecutive_failures"`
	TotalFailures         int       `json:"total_failures"`
	TotalAttempts         int       `json:"total_attempts"`
	SuccessfulConnections int       `json:"successful_connections"`
	MessagesReceived      int64     `json:"messages_received"`
	BackoffUntil          time.Time `json:"backoff_until"`
	ConnectedAt           time.Time `json:"connected_at"`
	LastFailureAt         time.Time `json:"last_failure_at"`
	LastError             string    `json:"last_error,omitempty"`
}

// Stats is the status snapshot exposed to the UI layer
type Stats struct {
	Connected           bool      `json:"connected"`
	Phase               Phase     `json:"phase"`
	Health              Health    `json:"health"`
	Attempts            int       `json:"attempts"`
	Successes           int       `json:"successes"`
	Failures            int       `json:"failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	MessagesReceived    int64     `json:"messages_received"`
	UptimeSeconds       float64   `json:"uptime_seconds"`
	BackoffUntil        time.Time `json:"backoff_until,omitempty"`
}
