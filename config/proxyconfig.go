package config

// ProxyConfig wraps a Values record with the path of the config file it was
// (partly) loaded from and a per-field Origin. It is immutable once built;
// a live update publishes a new *ProxyConfig behind configmgr's atomic
// handle rather than mutating this one in place.
type ProxyConfig struct {
	Values     Values
	ConfigFile *string
	Origins    map[string]Origin
}

// New returns an empty ProxyConfig with an initialized Origins map.
func New() *ProxyConfig {
	return &ProxyConfig{Origins: make(map[string]Origin)}
}

// Clone returns a deep-enough copy of pc: the Values struct and Origins map
// are copied, but the pointed-to scalars are shared (they're never mutated
// through a ProxyConfig, only replaced wholesale by Merge).
func (pc *ProxyConfig) Clone() *ProxyConfig {
	clone := &ProxyConfig{
		Values:     pc.Values,
		ConfigFile: pc.ConfigFile,
		Origins:    make(map[string]Origin, len(pc.Origins)),
	}
	for k, v := range pc.Origins {
		clone.Origins[k] = v
	}
	return clone
}

// Merge produces a new *ProxyConfig where, for each field present in other,
// other's value replaces self's and the origin map is updated to origin;
// fields absent in other keep self's value and origin untouched. Merge is
// associative and non-commutative: callers apply it lowest-priority source
// first (defaults -> file -> environment -> command-line -> admin-API).
func (pc *ProxyConfig) Merge(other *ProxyConfig, origin Origin) *ProxyConfig {
	result := pc.Clone()
	v := &result.Values
	o := other.Values

	setIfPresent(&v.ListenAddr, o.ListenAddr, result.Origins, FieldListenAddr, origin)
	setIfPresent(&v.TargetAddr, o.TargetAddr, result.Origins, FieldTargetAddr, origin)
	setIfPresent(&v.LogLevel, o.LogLevel, result.Origins, FieldLogLevel, origin)
	setIfPresent(&v.ClientCertMode, o.ClientCertMode, result.Origins, FieldClientCertMode, origin)
	setIfPresent(&v.BufferSize, o.BufferSize, result.Origins, FieldBufferSize, origin)
	setIfPresent(&v.ConnectionTimeout, o.ConnectionTimeout, result.Origins, FieldConnectionTimeout, origin)
	setIfPresent(&v.Cert, o.Cert, result.Origins, FieldCert, origin)
	setIfPresent(&v.Key, o.Key, result.Origins, FieldKey, origin)
	setIfPresent(&v.FallbackCert, o.FallbackCert, result.Origins, FieldFallbackCert, origin)
	setIfPresent(&v.FallbackKey, o.FallbackKey, result.Origins, FieldFallbackKey, origin)
	setIfPresent(&v.ClientCACert, o.ClientCACert, result.Origins, FieldClientCACert, origin)
	setIfPresent(&v.OpenSSLDir, o.OpenSSLDir, result.Origins, FieldOpenSSLDir, origin)

	if other.ConfigFile != nil {
		result.ConfigFile = other.ConfigFile
	}

	return result
}

// setIfPresent overwrites *dst and records origin[field] = origin only when
// incoming is non-nil; it is the per-field primitive Merge is built from.
func setIfPresent[T any](dst **T, incoming *T, origins map[string]Origin, field string, origin Origin) {
	if incoming == nil {
		return
	}
	*dst = incoming
	origins[field] = origin
}

// --- Accessors: total functions that substitute documented defaults ---

func (pc *ProxyConfig) ListenAddr() string {
	return stringOr(pc.Values.ListenAddr, DefaultListenAddr)
}

func (pc *ProxyConfig) TargetAddr() string {
	return stringOr(pc.Values.TargetAddr, DefaultTargetAddr)
}

func (pc *ProxyConfig) LogLevel() string {
	return stringOr(pc.Values.LogLevel, DefaultLogLevel)
}

func (pc *ProxyConfig) ClientCertMode() ClientCertMode {
	if pc.Values.ClientCertMode != nil {
		return *pc.Values.ClientCertMode
	}
	return DefaultClientCertMode
}

func (pc *ProxyConfig) BufferSize() int {
	if pc.Values.BufferSize != nil {
		return *pc.Values.BufferSize
	}
	return DefaultBufferSize
}

func (pc *ProxyConfig) ConnectionTimeoutSeconds() int {
	if pc.Values.ConnectionTimeout != nil {
		return *pc.Values.ConnectionTimeout
	}
	return DefaultConnectionTimeout
}

func (pc *ProxyConfig) Cert() string {
	return stringOr(pc.Values.Cert, DefaultCertPath)
}

func (pc *ProxyConfig) Key() string {
	return stringOr(pc.Values.Key, DefaultKeyPath)
}

func (pc *ProxyConfig) FallbackCert() string {
	return stringOr(pc.Values.FallbackCert, "")
}

func (pc *ProxyConfig) FallbackKey() string {
	return stringOr(pc.Values.FallbackKey, "")
}

func (pc *ProxyConfig) ClientCACert() string {
	return stringOr(pc.Values.ClientCACert, "")
}

func (pc *ProxyConfig) OpenSSLDir() string {
	return stringOr(pc.Values.OpenSSLDir, "")
}

// HasFallback is true iff both fallback_cert and fallback_key are set,
// which is the derived trigger for the Dynamic certificate strategy.
func (pc *ProxyConfig) HasFallback() bool {
	return pc.Values.HasFallback()
}

// ClientCertRequired reports whether the handshake must fail without a
// client certificate.
func (pc *ProxyConfig) ClientCertRequired() bool {
	return pc.ClientCertMode() == ClientCertRequired
}

func stringOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}
