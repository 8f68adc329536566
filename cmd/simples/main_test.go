package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/nexconsult/simples-nacional/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path == "/07526557011659" {
			_, _ = w.Write([]byte(`{"company":{"simples":{"optant":false},"simei":{"optant":true}}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("SIMPLES_API_BASE_URL", srv.URL)
	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out, &errOut)
	err := app.Run(append([]string{"simples"}, args...))
	return out.String(), err
}

func TestResolve_StdinToStdoutWithFileCache(t *testing.T) {
	var hits int32
	newRegistry(t, &hits)
	cacheFile := filepath.Join(t.TempDir(), "cache_simples.json")

	input := `["07.526.557/0116-59", "11222333000181", "00000000000000"]`
	out, err := run(t, input, "--cache-file", cacheFile, "--delay", "0s")
	require.NoError(t, err)

	var results []models.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.Equal(t, models.NewOKResult("07526557011659", false, true), results[0])
	assert.Equal(t, models.StatusNaoEncontrado, results[1].Status)
	assert.Equal(t, models.StatusInvalido, results[2].Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	data, err := os.ReadFile(cacheFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"07526557011659"`)
	assert.NotContains(t, string(data), `"11222333000181"`)

	// second process reads the cache instead of the registry
	out, err = run(t, `["07526557011659"]`, "--cache-file", cacheFile, "resolve")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, models.NewOKResult("07526557011659", false, true), results[0])
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestResolve_InputAndOutputFiles(t *testing.T) {
	var hits int32
	newRegistry(t, &hits)
	dir := t.TempDir()

	inFile := filepath.Join(dir, "in.json")
	outFile := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(inFile, []byte(`["abc"]`), 0o644))

	stdout, err := run(t, "", "--input", inFile, "--output", outFile, "--cache-backend", "memory")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"cnpj":"abc","status":"INVALIDO"}]`, string(data))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestResolve_RejectsMalformedInput(t *testing.T) {
	var hits int32
	newRegistry(t, &hits)

	for _, input := range []string{"", "null", `{"cnpjs":[]}`, `[1, 2]`} {
		_, err := run(t, input, "--cache-backend", "memory")
		assert.Error(t, err, "input %q", input)
	}
}

func TestResolve_CorruptCacheFails(t *testing.T) {
	var hits int32
	newRegistry(t, &hits)
	cacheFile := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(cacheFile, []byte("{not json"), 0o644))

	out, err := run(t, `["07526557011659"]`, "--cache-file", cacheFile)

	assert.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestResolve_UnknownBackend(t *testing.T) {
	_, err := run(t, `[]`, "--cache-backend", "sqlite")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	out, err := run(t, `["07.526.557/0116-59", "11111111111111"]`, "validate")
	require.NoError(t, err)

	var infos []utils.CNPJInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)

	assert.True(t, infos[0].Valid)
	assert.Equal(t, "07526557011659", infos[0].Cleaned)
	assert.Equal(t, "07.526.557/0116-59", infos[0].Formatted)
	assert.False(t, infos[1].Valid)
}

func TestCacheStats(t *testing.T) {
	var hits int32
	newRegistry(t, &hits)
	cacheFile := filepath.Join(t.TempDir(), "cache.json")

	_, err := run(t, `["07526557011659"]`, "--cache-file", cacheFile)
	require.NoError(t, err)

	out, err := run(t, "", "--cache-file", cacheFile, "cache-stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"backend":"file","entries":1,"fresh":1,"stale":0,"ttl_days":30}`, out)
}
