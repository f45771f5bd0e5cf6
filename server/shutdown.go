package main

// ShutdownReason records why the process is stopping; it is propagated to
// every long-lived actor so their exit logs say which signal drained them.
type ShutdownReason string

const (
	ShutdownSigint  ShutdownReason = "SIGINT"
	ShutdownSigterm ShutdownReason = "SIGTERM"
)

func (r ShutdownReason) String() string { return string(r) }
