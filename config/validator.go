package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/jerryr7/quantum-safe-proxy/qserrors"
)

// ValidationError carries the field that violated an invariant and a
// human-readable message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a non-empty list of ValidationError, returned as a
// single error (wrapped in a *qserrors.Error) so callers range over the
// individual violations after extracting it with errors.As.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is/As.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, ve := range e {
		errs[i] = ve
	}
	return errs
}

// Warning is a non-blocking validation concern (e.g. listen port 0).
type Warning struct {
	Field   string
	Message string
}

// Validate enforces the invariants on cv:
//
//   - listen_addr != target_addr
//   - cert and key files exist and are readable; if either fallback_* is
//     set, both must be set and both files must exist
//   - if client_cert_mode != none, client_ca_cert must exist
//   - buffer_size in [MinBufferSize, MaxBufferSize]
//   - connection_timeout > 0
//
// It returns a non-nil error (a ValidationErrors, wrapped for multierr
// compatibility) if and only if at least one invariant is violated.
func Validate(pc *ProxyConfig) error {
	var errs ValidationErrors

	if pc.ListenAddr() == pc.TargetAddr() {
		errs = append(errs, ValidationError{FieldListenAddr, "listen_addr must differ from target_addr"})
	}

	if bs := pc.BufferSize(); bs < MinBufferSize || bs > MaxBufferSize {
		errs = append(errs, ValidationError{FieldBufferSize, fmt.Sprintf(
			"buffer_size must be between %d and %d bytes, got %d", MinBufferSize, MaxBufferSize, bs)})
	}

	if pc.ConnectionTimeoutSeconds() <= 0 {
		errs = append(errs, ValidationError{FieldConnectionTimeout, "connection_timeout must be positive"})
	}

	errs = append(errs, validateCertPair(pc)...)

	if pc.ClientCertMode() != ClientCertNone {
		if pc.ClientCACert() == "" {
			errs = append(errs, ValidationError{FieldClientCACert,
				"client_ca_cert is required when client_cert_mode is not none"})
		} else if !fileExists(pc.ClientCACert()) {
			errs = append(errs, ValidationError{FieldClientCACert,
				fmt.Sprintf("client_ca_cert %q does not exist", pc.ClientCACert())})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return multierr.Combine(wrapValidationErrors(errs))
}

func validateCertPair(pc *ProxyConfig) ValidationErrors {
	var errs ValidationErrors

	if !fileExists(pc.Cert()) {
		errs = append(errs, ValidationError{FieldCert, fmt.Sprintf("cert file %q does not exist or is unreadable", pc.Cert())})
	}
	if !fileExists(pc.Key()) {
		errs = append(errs, ValidationError{FieldKey, fmt.Sprintf("key file %q does not exist or is unreadable", pc.Key())})
	}

	fcSet := pc.Values.FallbackCert != nil
	fkSet := pc.Values.FallbackKey != nil
	switch {
	case fcSet && !fkSet:
		errs = append(errs, ValidationError{FieldFallbackKey, "fallback_key must be set when fallback_cert is set"})
	case fkSet && !fcSet:
		errs = append(errs, ValidationError{FieldFallbackCert, "fallback_cert must be set when fallback_key is set"})
	case fcSet && fkSet:
		if !fileExists(pc.FallbackCert()) {
			errs = append(errs, ValidationError{FieldFallbackCert, fmt.Sprintf("fallback_cert file %q does not exist", pc.FallbackCert())})
		}
		if !fileExists(pc.FallbackKey()) {
			errs = append(errs, ValidationError{FieldFallbackKey, fmt.Sprintf("fallback_key file %q does not exist", pc.FallbackKey())})
		}
	}

	return errs
}

// Warnings reports non-blocking concerns about pc that do not prevent
// startup.
func Warnings(pc *ProxyConfig) []Warning {
	var warnings []Warning
	if strings.HasSuffix(pc.ListenAddr(), ":0") {
		warnings = append(warnings, Warning{FieldListenAddr, "listening on port 0 assigns an ephemeral port"})
	}
	return warnings
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// wrapValidationErrors adapts ValidationErrors (a single error value) so
// that multierr.Combine returns a *qserrors.Error of KindConfiguration
// wrapping it, matching the propagation policy: Configuration errors at
// startup are fatal, and reload errors of this kind never replace the
// active config.
func wrapValidationErrors(errs ValidationErrors) error {
	return qserrors.Configuration("validate config", errs)
}
