// Package mail defines the contracts for sending email messages.
//
// Use cases work with the Mail interface and the Message payload; the concrete
// delivery mechanism lives in this package. SMTP speaks to a relay with
// implicit TLS, STARTTLS or plain connections. Unconfigured stands in when no
// relay is configured and fails every send, so callers treat a missing relay
// like any other delivery failure.
package mail
