package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendWritesChainedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(KindConfigReload, "reloaded from /etc/qsp/config.json"))
	require.NoError(t, l.Append(KindConnectionRejected, "non-TLS first byte"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)

	assert.Equal(t, uint64(0), events[0].Seq)
	assert.Equal(t, "", events[0].PrevHash)
	assert.NotEmpty(t, events[0].Hash)

	assert.Equal(t, uint64(1), events[1].Seq)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	assert.NotEqual(t, events[0].Hash, events[1].Hash)
}

func TestAppendTamperDetectionBreaksChain(t *testing.T) {
	ev1 := Event{Seq: 0, ID: "a", Kind: KindShutdown, Detail: "d1", PrevHash: ""}
	ev1.Hash = chainHash(ev1)

	tampered := ev1
	tampered.Detail = "tampered"
	assert.NotEqual(t, ev1.Hash, chainHash(tampered))
}

func TestOpenAppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	l1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l1.Append(KindShutdown, "first session"))
	require.NoError(t, l1.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()
	require.NoError(t, l2.Append(KindShutdown, "second session"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first session")
	assert.Contains(t, string(data), "second session")
}

var _ Sink = (*Logger)(nil)
