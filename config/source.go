package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Source loads a sparsely-populated ProxyConfig, its values tagged with the
// source's own Origin. The four built-in sources (Default, File,
// Environment, CommandLine) are the only implementations; there is no
// polymorphic depth beyond this one interface.
type Source interface {
	Load() (*ProxyConfig, error)
}

// EnvPrefix is prepended to the upper-snake-cased field name to form the
// environment variable Environment reads, e.g. QUANTUM_SAFE_PROXY_LISTEN_ADDR.
const EnvPrefix = "QUANTUM_SAFE_PROXY_"

// DefaultSource supplies the hard-coded defaults. It always succeeds.
type DefaultSource struct{}

func (DefaultSource) Load() (*ProxyConfig, error) {
	pc := New()
	mode := DefaultClientCertMode
	bufSize := DefaultBufferSize
	timeout := DefaultConnectionTimeout
	listen := DefaultListenAddr
	target := DefaultTargetAddr
	level := DefaultLogLevel
	cert := DefaultCertPath
	key := DefaultKeyPath

	pc.Values = Values{
		ListenAddr:        &listen,
		TargetAddr:        &target,
		LogLevel:          &level,
		ClientCertMode:    &mode,
		BufferSize:        &bufSize,
		ConnectionTimeout: &timeout,
		Cert:              &cert,
		Key:               &key,
	}
	for _, f := range AllFields {
		if _, ok := fieldIsSet(pc.Values, f); ok {
			pc.Origins[f] = OriginDefault
		}
	}
	return pc, nil
}

// FileSource reads a JSON document matching Values from Path. A
// non-existent file is not an error: it produces an empty ProxyConfig
// (callers should log a warning).
type FileSource struct {
	Path string
}

func (s FileSource) Load() (*ProxyConfig, error) {
	pc := New()
	if s.Path == "" {
		return pc, nil
	}

	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return pc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", s.Path, err)
	}

	var values Values
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", s.Path, err)
	}

	pc.Values = values
	path := s.Path
	pc.ConfigFile = &path
	for _, f := range AllFields {
		if _, ok := fieldIsSet(values, f); ok {
			pc.Origins[f] = OriginFile
		}
	}
	return pc, nil
}

// EnvSource reads QUANTUM_SAFE_PROXY_-prefixed environment variables, one
// per CV field, named by the field's upper-snake-case key (e.g.
// QUANTUM_SAFE_PROXY_BUFFER_SIZE). It additionally honors
// QUANTUM_SAFE_PROXY_CONFIG_FILE to select the config file path.
type EnvSource struct {
	// Lookup is os.LookupEnv by default; overridable for tests.
	Lookup func(key string) (string, bool)
}

func (s EnvSource) Load() (*ProxyConfig, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	pc := New()
	v := &pc.Values
	var firstErr error
	get := func(field string) (string, bool) { return lookup(EnvPrefix + strings.ToUpper(field)) }

	if s, ok := get(FieldListenAddr); ok {
		v.ListenAddr = &s
		pc.Origins[FieldListenAddr] = OriginEnvironment
	}
	if s, ok := get(FieldTargetAddr); ok {
		v.TargetAddr = &s
		pc.Origins[FieldTargetAddr] = OriginEnvironment
	}
	if s, ok := get(FieldLogLevel); ok {
		v.LogLevel = &s
		pc.Origins[FieldLogLevel] = OriginEnvironment
	}
	if s, ok := get(FieldClientCertMode); ok {
		m := ClientCertMode(s)
		v.ClientCertMode = &m
		pc.Origins[FieldClientCertMode] = OriginEnvironment
	}
	if s, ok := get(FieldBufferSize); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			firstErr = accumulateParseErr(firstErr, FieldBufferSize, s, err)
		} else {
			v.BufferSize = &n
			pc.Origins[FieldBufferSize] = OriginEnvironment
		}
	}
	if s, ok := get(FieldConnectionTimeout); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			firstErr = accumulateParseErr(firstErr, FieldConnectionTimeout, s, err)
		} else {
			v.ConnectionTimeout = &n
			pc.Origins[FieldConnectionTimeout] = OriginEnvironment
		}
	}
	if s, ok := get(FieldCert); ok {
		v.Cert = &s
		pc.Origins[FieldCert] = OriginEnvironment
	}
	if s, ok := get(FieldKey); ok {
		v.Key = &s
		pc.Origins[FieldKey] = OriginEnvironment
	}
	if s, ok := get(FieldFallbackCert); ok {
		v.FallbackCert = &s
		pc.Origins[FieldFallbackCert] = OriginEnvironment
	}
	if s, ok := get(FieldFallbackKey); ok {
		v.FallbackKey = &s
		pc.Origins[FieldFallbackKey] = OriginEnvironment
	}
	if s, ok := get(FieldClientCACert); ok {
		v.ClientCACert = &s
		pc.Origins[FieldClientCACert] = OriginEnvironment
	}
	if s, ok := get(FieldOpenSSLDir); ok {
		v.OpenSSLDir = &s
		pc.Origins[FieldOpenSSLDir] = OriginEnvironment
	}
	if s, ok := lookup(EnvPrefix + "CONFIG_FILE"); ok {
		pc.ConfigFile = &s
	}

	return pc, firstErr
}

func accumulateParseErr(prev error, field, value string, cause error) error {
	err := fmt.Errorf("environment variable for %s has invalid value %q: %w", field, value, cause)
	if prev == nil {
		return err
	}
	return fmt.Errorf("%w; %s", prev, err)
}

// CLISource consumes command-line flags via a *pflag.FlagSet that the
// caller has already parsed (cmd/quantum-safe-proxy registers these flags
// on its cobra command). Each flag's Changed state, not just its value,
// determines whether the field is considered "present" -- pflag defaults
// must never shadow a lower-priority source.
type CLISource struct {
	Flags *pflag.FlagSet
}

// RegisterFlags adds the command-line surface (--listen, --target,
// --log-level, --client-cert-mode, --buffer-size, --connection-timeout,
// --openssl-dir, --cert/--hybrid-cert, --key/--hybrid-key,
// --fallback-cert/--traditional-cert, --fallback-key/--traditional-key,
// --client-ca-cert, --config-file) onto fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("listen", "", "address to listen on, e.g. 0.0.0.0:8443")
	fs.String("target", "", "upstream address to forward to")
	fs.String("log-level", "", "error|warn|info|debug|trace")
	fs.String("client-cert-mode", "", "required|optional|none")
	fs.Int("buffer-size", 0, "bridge buffer size in bytes")
	fs.Int("connection-timeout", 0, "upstream dial timeout in seconds")
	fs.String("openssl-dir", "", "override crypto library installation root")
	fs.String("cert", "", "primary certificate path")
	fs.String("hybrid-cert", "", "alias for --cert")
	fs.String("key", "", "primary key path")
	fs.String("hybrid-key", "", "alias for --key")
	fs.String("fallback-cert", "", "classical fallback certificate path")
	fs.String("traditional-cert", "", "alias for --fallback-cert")
	fs.String("fallback-key", "", "classical fallback key path")
	fs.String("traditional-key", "", "alias for --fallback-key")
	fs.String("client-ca-cert", "", "CA bundle for verifying client certificates")
	fs.String("config-file", "", "path to the JSON configuration file")
}

func (s CLISource) Load() (*ProxyConfig, error) {
	pc := New()
	if s.Flags == nil {
		return pc, nil
	}
	v := &pc.Values
	fs := s.Flags

	setString := func(field, name string) {
		if fs.Changed(name) {
			val, _ := fs.GetString(name)
			switch field {
			case FieldListenAddr:
				v.ListenAddr = &val
			case FieldTargetAddr:
				v.TargetAddr = &val
			case FieldLogLevel:
				v.LogLevel = &val
			case FieldCert:
				v.Cert = &val
			case FieldKey:
				v.Key = &val
			case FieldFallbackCert:
				v.FallbackCert = &val
			case FieldFallbackKey:
				v.FallbackKey = &val
			case FieldClientCACert:
				v.ClientCACert = &val
			case FieldOpenSSLDir:
				v.OpenSSLDir = &val
			}
			pc.Origins[field] = OriginCommandLine
		}
	}

	setString(FieldListenAddr, "listen")
	setString(FieldTargetAddr, "target")
	setString(FieldLogLevel, "log-level")
	setString(FieldOpenSSLDir, "openssl-dir")
	setString(FieldClientCACert, "client-ca-cert")

	// cert/key and their legacy aliases: canonical flag wins if both given.
	for _, name := range []string{"hybrid-cert", "cert"} {
		setString(FieldCert, name)
	}
	for _, name := range []string{"hybrid-key", "key"} {
		setString(FieldKey, name)
	}
	for _, name := range []string{"traditional-cert", "fallback-cert"} {
		setString(FieldFallbackCert, name)
	}
	for _, name := range []string{"traditional-key", "fallback-key"} {
		setString(FieldFallbackKey, name)
	}

	if fs.Changed("client-cert-mode") {
		val, _ := fs.GetString("client-cert-mode")
		mode := ClientCertMode(val)
		v.ClientCertMode = &mode
		pc.Origins[FieldClientCertMode] = OriginCommandLine
	}
	if fs.Changed("buffer-size") {
		n, _ := fs.GetInt("buffer-size")
		v.BufferSize = &n
		pc.Origins[FieldBufferSize] = OriginCommandLine
	}
	if fs.Changed("connection-timeout") {
		n, _ := fs.GetInt("connection-timeout")
		v.ConnectionTimeout = &n
		pc.Origins[FieldConnectionTimeout] = OriginCommandLine
	}
	if fs.Changed("config-file") {
		val, _ := fs.GetString("config-file")
		pc.ConfigFile = &val
	}

	return pc, nil
}

// fieldIsSet reports whether field is non-nil in values, for Source
// implementations that build a Values struct directly rather than field by
// field.
func fieldIsSet(values Values, field string) (any, bool) {
	switch field {
	case FieldListenAddr:
		return values.ListenAddr, values.ListenAddr != nil
	case FieldTargetAddr:
		return values.TargetAddr, values.TargetAddr != nil
	case FieldLogLevel:
		return values.LogLevel, values.LogLevel != nil
	case FieldClientCertMode:
		return values.ClientCertMode, values.ClientCertMode != nil
	case FieldBufferSize:
		return values.BufferSize, values.BufferSize != nil
	case FieldConnectionTimeout:
		return values.ConnectionTimeout, values.ConnectionTimeout != nil
	case FieldCert:
		return values.Cert, values.Cert != nil
	case FieldKey:
		return values.Key, values.Key != nil
	case FieldFallbackCert:
		return values.FallbackCert, values.FallbackCert != nil
	case FieldFallbackKey:
		return values.FallbackKey, values.FallbackKey != nil
	case FieldClientCACert:
		return values.ClientCACert, values.ClientCACert != nil
	case FieldOpenSSLDir:
		return values.OpenSSLDir, values.OpenSSLDir != nil
	default:
		return nil, false
	}
}
