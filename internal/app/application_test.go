package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/freename/internal/app"
	"github.com/raysh454/freename/internal/demoserver"
	"github.com/raysh454/freename/internal/logging"
	"github.com/raysh454/freename/internal/testutil"
	"github.com/raysh454/freename/internal/wordlist"
)

func demo(t *testing.T, cfg demoserver.Config) (*demoserver.DemoServer, *httptest.Server) {
	t.Helper()
	d := demoserver.NewDemoServer(cfg)
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)
	return d, srv
}

func TestApplication_Run(t *testing.T) {
	dcfg := demoserver.DefaultConfig()
	dcfg.RateLimitEvery = 0
	dcfg.RateLimitBurst = 2
	d, srv := demo(t, dcfg)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "words.txt", []byte("xx\nalice\n\nbob123\nxx\r\n"), 0o644))

	cfg := app.DefaultConfig()
	cfg.URLTemplate = srv.URL + "/id/{}"
	cfg.Output = "free.txt"

	var buf bytes.Buffer
	sleeper := &testutil.CountingSleeper{}
	a, err := app.New(cfg,
		app.WithFs(fs),
		app.WithSleeper(sleeper),
		app.WithLogger(logging.NewLogger(&buf, "freename", logging.LevelInfo)))
	require.NoError(t, err)
	defer a.Close()

	free, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"xx"}, free)

	// three unique candidates, two 429s each before the page
	assert.Equal(t, 9, d.Stats().Requests)
	assert.Equal(t, 6, sleeper.Count())

	written, err := wordlist.Load(fs, "free.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"xx"}, written)

	var sawFree bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		fields, _ := entry["fields"].(map[string]any)
		assert.Equal(t, a.RunID, fields["run_id"])
		if entry["msg"] == "username is free" {
			sawFree = true
			assert.Equal(t, "xx", fields["username"])
		}
	}
	assert.True(t, sawFree)
}

func TestApplication_HeaderOverrides(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte(demoserver.NotFoundText))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "words.txt", []byte("someone\n"), 0o644))

	cfg := app.DefaultConfig()
	cfg.URLTemplate = srv.URL + "/id/{}"
	cfg.Headers = map[string]string{"user-agent": "freename-test"}

	a, err := app.New(cfg, app.WithFs(fs), app.WithLogger(logging.Nop{}))
	require.NoError(t, err)
	defer a.Close()

	free, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"someone"}, free)
	assert.Equal(t, "freename-test", gotUA)
	assert.NotEmpty(t, gotLang)
}

func TestApplication_MissingWordlist(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.WordlistPath = "missing.txt"

	wc := &testutil.ScriptedWebClient{}
	a, err := app.New(cfg, app.WithFs(afero.NewMemMapFs()), app.WithWebClient(wc), app.WithLogger(logging.Nop{}))
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, wordlist.IsNotExist(err))
	assert.Contains(t, err.Error(), "load wordlist")
	assert.Equal(t, 0, wc.Calls())
}

func TestApplication_InvalidConfig(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.Backend = "lynx"
	_, err := app.New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestApplication_Canceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "words.txt", []byte("a\nb\n"), 0o644))

	wc := &testutil.ScriptedWebClient{}
	a, err := app.New(app.DefaultConfig(), app.WithFs(fs), app.WithWebClient(wc), app.WithLogger(logging.Nop{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, wc.Calls())
}

func TestApplication_MetricsEndpoint(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "words.txt", []byte("a\n"), 0o644))

	wc := &testutil.ScriptedWebClient{Steps: testutil.RateLimitedThen(1, demoserver.NotFoundText)}
	a, err := app.New(app.DefaultConfig(),
		app.WithFs(fs),
		app.WithWebClient(wc),
		app.WithSleeper(&testutil.CountingSleeper{}),
		app.WithLogger(logging.Nop{}))
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.NoError(t, err)

	families, err := a.Gatherer().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["freename_requests_total"])
	assert.True(t, names["freename_rate_limit_sleeps_total"])
	assert.True(t, names["freename_candidates_total"])
}
