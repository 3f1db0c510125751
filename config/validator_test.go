package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func validConfig(t *testing.T) *ProxyConfig {
	t.Helper()
	dir := t.TempDir()
	cert := writeTemp(t, dir, "cert.pem", "cert")
	key := writeTemp(t, dir, "key.pem", "key")
	none := ClientCertNone

	pc := New()
	pc.Values = Values{
		ListenAddr:     strp("0.0.0.0:8443"),
		TargetAddr:     strp("127.0.0.1:6000"),
		ClientCertMode: &none,
		Cert:           strp(cert),
		Key:            strp(key),
	}
	return pc
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig(t)))
}

func TestValidateRejectsZeroBufferSize(t *testing.T) {
	pc := validConfig(t)
	pc.Values.BufferSize = intp(0)
	err := Validate(pc)
	require.Error(t, err)
	assertFieldViolated(t, err, FieldBufferSize)
}

func TestValidateRejectsZeroConnectionTimeout(t *testing.T) {
	pc := validConfig(t)
	pc.Values.ConnectionTimeout = intp(0)
	err := Validate(pc)
	require.Error(t, err)
	assertFieldViolated(t, err, FieldConnectionTimeout)
}

func TestValidateRejectsEqualListenAndTarget(t *testing.T) {
	pc := validConfig(t)
	pc.Values.TargetAddr = pc.Values.ListenAddr
	err := Validate(pc)
	require.Error(t, err)
	assertFieldViolated(t, err, FieldListenAddr)
}

func TestValidateRejectsRequiredModeWithoutClientCACert(t *testing.T) {
	pc := validConfig(t)
	required := ClientCertRequired
	pc.Values.ClientCertMode = &required
	err := Validate(pc)
	require.Error(t, err)
	assertFieldViolated(t, err, FieldClientCACert)
}

func TestValidateRejectsFallbackCertWithoutFallbackKey(t *testing.T) {
	pc := validConfig(t)
	pc.Values.FallbackCert = strp("somewhere.pem")
	err := Validate(pc)
	require.Error(t, err)
	assertFieldViolated(t, err, FieldFallbackKey)
}

func TestValidateAcceptsDynamicModeWithBothFallbackFiles(t *testing.T) {
	pc := validConfig(t)
	dir := t.TempDir()
	pc.Values.FallbackCert = strp(writeTemp(t, dir, "fc.pem", "x"))
	pc.Values.FallbackKey = strp(writeTemp(t, dir, "fk.pem", "x"))
	assert.NoError(t, Validate(pc))
	assert.True(t, pc.HasFallback())
}

func TestValidateRejectsMissingCertFile(t *testing.T) {
	pc := validConfig(t)
	pc.Values.Cert = strp("/nonexistent/path/cert.pem")
	err := Validate(pc)
	require.Error(t, err)
	assertFieldViolated(t, err, FieldCert)
}

func assertFieldViolated(t *testing.T, err error, field string) {
	t.Helper()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs), "error chain should contain ValidationErrors: %v", err)
	for _, ve := range verrs {
		if ve.Field == field {
			return
		}
	}
	t.Fatalf("expected a validation error on field %q, got: %v", field, err)
}
