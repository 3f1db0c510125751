package configmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jerryr7/quantum-safe-proxy/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func validConfig(t *testing.T) *config.ProxyConfig {
	t.Helper()
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(key, []byte("key"), 0o600))

	none := config.ClientCertNone
	pc := config.New()
	pc.Values = config.Values{
		ListenAddr:     strp("0.0.0.0:8443"),
		TargetAddr:     strp("127.0.0.1:6000"),
		ClientCertMode: &none,
		Cert:           strp(cert),
		Key:            strp(key),
	}
	return pc
}

func TestInstallReplacesSnapshotOnSuccess(t *testing.T) {
	m := New()
	pc := validConfig(t)

	require.NoError(t, m.Install(pc))
	assert.Equal(t, pc.ListenAddr(), m.Get().ListenAddr())
}

func TestInstallRejectsInvalidConfigAndKeepsPrevious(t *testing.T) {
	m := New()
	good := validConfig(t)
	require.NoError(t, m.Install(good))

	bad := validConfig(t)
	bad.Values.BufferSize = func() *int { n := 0; return &n }()

	err := m.Install(bad)
	assert.Error(t, err)
	assert.Equal(t, good.ListenAddr(), m.Get().ListenAddr())
}

func TestReloadMergesOnTopOfCurrentSnapshot(t *testing.T) {
	m := New()
	require.NoError(t, m.Install(validConfig(t)))

	dir := t.TempDir()
	path := filepath.Join(dir, "reload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "debug"}`), 0o600))

	require.NoError(t, m.Reload(path))
	assert.Equal(t, "debug", m.Get().LogLevel())
	// Fields absent from the reload file keep their previous values.
	assert.Equal(t, "0.0.0.0:8443", m.Get().ListenAddr())
}

func TestReloadFailureKeepsPreviousConfigActive(t *testing.T) {
	m := New()
	good := validConfig(t)
	require.NoError(t, m.Install(good))

	dir := t.TempDir()
	path := filepath.Join(dir, "reload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"buffer_size": 0}`), 0o600))

	err := m.Reload(path)
	assert.Error(t, err)
	assert.Equal(t, good.ListenAddr(), m.Get().ListenAddr())
}

func TestSubscribeNotifiedOnEachReplacement(t *testing.T) {
	m := New()
	var events []Event
	m.Subscribe(func(e Event, _ *config.ProxyConfig) {
		events = append(events, e)
	})

	require.NoError(t, m.Install(validConfig(t)))

	dir := t.TempDir()
	path := filepath.Join(dir, "reload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "warn"}`), 0o600))
	require.NoError(t, m.Reload(path))

	require.Len(t, events, 2)
	assert.Equal(t, EventUpdated, events[0])
	assert.Equal(t, EventReloaded, events[1])
}

func TestDerivedProjectionsReflectCurrentSnapshot(t *testing.T) {
	m := New()
	pc := validConfig(t)
	pc.Values.BufferSize = func() *int { n := 4096; return &n }()
	require.NoError(t, m.Install(pc))

	assert.Equal(t, 4096, m.BufferSize())
	assert.Equal(t, config.DefaultConnectionTimeout, m.ConnectionTimeout())
	assert.False(t, m.HasFallback())
	assert.False(t, m.IsClientCertRequired())
}
