// Package config implements the configuration substrate (C8-C10): the
// value model with per-field provenance, the defaults/file/env/argv
// sources and builder, and the validator that enforces the invariants the
// data plane depends on.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ClientCertMode selects how the proxy authenticates TLS clients.
type ClientCertMode string

const (
	// ClientCertRequired fails the handshake if the client presents no
	// certificate.
	ClientCertRequired ClientCertMode = "required"
	// ClientCertOptional verifies a client certificate if one is presented,
	// but does not require one.
	ClientCertOptional ClientCertMode = "optional"
	// ClientCertNone performs no client-certificate verification.
	ClientCertNone ClientCertMode = "none"
)

// Origin labels which source produced the currently-effective value of a
// configuration field. It is used for diagnostics only and never affects
// semantics.
type Origin string

const (
	OriginDefault     Origin = "default"
	OriginFile        Origin = "file"
	OriginEnvironment Origin = "environment"
	OriginCommandLine Origin = "command_line"
	OriginAdminAPI    Origin = "admin_api"
)

// The Field* constants enumerate the CV fields by a stable string key, used as the key
// space for the Origins map and the environment-variable suffix table.
const (
	FieldListenAddr         = "listen_addr"
	FieldTargetAddr         = "target_addr"
	FieldLogLevel           = "log_level"
	FieldClientCertMode     = "client_cert_mode"
	FieldBufferSize         = "buffer_size"
	FieldConnectionTimeout  = "connection_timeout"
	FieldCert               = "cert"
	FieldKey                = "key"
	FieldFallbackCert       = "fallback_cert"
	FieldFallbackKey        = "fallback_key"
	FieldClientCACert       = "client_ca_cert"
	FieldOpenSSLDir         = "openssl_dir"
)

// AllFields lists every CV field key, in a stable order used for
// deterministic iteration (e.g. when printing status).
var AllFields = []string{
	FieldListenAddr, FieldTargetAddr, FieldLogLevel, FieldClientCertMode,
	FieldBufferSize, FieldConnectionTimeout, FieldCert, FieldKey,
	FieldFallbackCert, FieldFallbackKey, FieldClientCACert, FieldOpenSSLDir,
}

// Defaults used by accessors when a field is absent, and by DefaultSource.
const (
	DefaultListenAddr        = "0.0.0.0:8443"
	DefaultTargetAddr        = "127.0.0.1:6000"
	DefaultLogLevel          = "info"
	DefaultClientCertMode    = ClientCertOptional
	DefaultBufferSize        = 8192
	DefaultConnectionTimeout = 30
	DefaultCertPath          = "certs/hybrid/server.crt"
	DefaultKeyPath           = "certs/hybrid/server.key"
)

const (
	MinBufferSize = 1024
	MaxBufferSize = 1024 * 1024
)

// Values is a record whose every field is optional (nil = absent). It is the
// sparsely-populated value a Source produces and that Merge combines.
type Values struct {
	ListenAddr        *string         `json:"listen_addr,omitempty"`
	TargetAddr        *string         `json:"target_addr,omitempty"`
	LogLevel          *string         `json:"log_level,omitempty"`
	ClientCertMode    *ClientCertMode `json:"client_cert_mode,omitempty"`
	BufferSize        *int            `json:"buffer_size,omitempty"`
	ConnectionTimeout *int            `json:"connection_timeout,omitempty"`
	Cert              *string         `json:"cert,omitempty"`
	Key               *string         `json:"key,omitempty"`
	FallbackCert      *string         `json:"fallback_cert,omitempty"`
	FallbackKey       *string         `json:"fallback_key,omitempty"`
	ClientCACert      *string         `json:"client_ca_cert,omitempty"`
	OpenSSLDir        *string         `json:"openssl_dir,omitempty"`
}

// valuesAlias has the same fields as Values but, being a distinct defined
// type, does not inherit Values' UnmarshalJSON method. Embedding *this*
// instead of Values itself in legacyShadow keeps legacyShadow a plain
// struct in the eyes of encoding/json, so decoding it doesn't re-invoke
// Values.UnmarshalJSON and recurse forever.
type valuesAlias Values

// legacyShadow mirrors Values but additionally accepts the backward
// compatible field aliases documented for the config file format. Decoding
// into it happens in one pass (see UnmarshalJSON), after which legacy values
// fill any canonical field left unset, so that both canonical and legacy
// keys are accepted while truly unknown keys are still rejected.
type legacyShadow struct {
	*valuesAlias
	HybridCert      *string `json:"hybrid_cert,omitempty"`
	HybridKey       *string `json:"hybrid_key,omitempty"`
	TraditionalCert *string `json:"traditional_cert,omitempty"`
	TraditionalKey  *string `json:"traditional_key,omitempty"`
	ClientCACertAlt *string `json:"client_ca_cert_path,omitempty"`
}

// UnmarshalJSON rejects unknown fields but accepts legacy aliases:
// hybrid_cert -> cert, hybrid_key -> key, traditional_cert -> fallback_cert,
// traditional_key -> fallback_key, client_ca_cert_path -> client_ca_cert.
// A canonical key, if present, always wins over its legacy alias.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	shadow := legacyShadow{valuesAlias: &valuesAlias{}}
	if err := dec.Decode(&shadow); err != nil {
		return fmt.Errorf("decoding config values: %w", err)
	}

	*v = Values(*shadow.valuesAlias)
	if v.Cert == nil {
		v.Cert = shadow.HybridCert
	}
	if v.Key == nil {
		v.Key = shadow.HybridKey
	}
	if v.FallbackCert == nil {
		v.FallbackCert = shadow.TraditionalCert
	}
	if v.FallbackKey == nil {
		v.FallbackKey = shadow.TraditionalKey
	}
	if v.ClientCACert == nil {
		v.ClientCACert = shadow.ClientCACertAlt
	}
	return nil
}

// HasFallback reports whether both fallback_cert and fallback_key are set,
// which is the trigger for Dynamic certificate-selection strategy.
func (v Values) HasFallback() bool {
	return v.FallbackCert != nil && v.FallbackKey != nil
}
