package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"food-explorer/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi/search.pl", func(w http.ResponseWriter, r *http.Request) {
		if terms := r.URL.Query().Get("search_terms"); terms != "" {
			fmt.Fprintf(w, `{"products":[{"code":"42","product_name":"%s bar","nutrition_grades":"c"}]}`, terms)
			return
		}
		fmt.Fprint(w, `{"products":[
			{"code":"1","product_name":"Cola","categories":"Beverages"},
			{"code":"2","product_name":"Apple Juice","nutrition_grades":"a","categories":"Beverages, Juices"},
			{"code":"3","product_name":"Banana Bread","nutrition_grades":"b","categories":"Snacks"}
		]}`)
	})
	mux.HandleFunc("/categories.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tags":[{"id":"en:snacks","name":"Snacks","products":1200}]}`)
	})
	mux.HandleFunc("/api/v0/product/3017620422003.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":1,"product":{"product_name":"Nutella","nutrition_grades":"e","nutriments":{"fat_100g":30.9}}}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ts := newUpstream(t)
	t.Setenv("OFF_BASE_URL", ts.URL)
	t.Setenv("CACHE_DB_PATH", filepath.Join(t.TempDir(), "cache.db"))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
	}{
		{
			name:     "browse sorted by name",
			args:     []string{"browse"},
			contains: []string{"CODE", "Apple Juice", "Banana Bread", "Cola"},
		},
		{
			name:     "browse by category",
			args:     []string{"browse", "--category", "beverages", "--sort", "grade"},
			contains: []string{"Apple Juice", "Cola"},
			excludes: []string{"Banana Bread"},
		},
		{
			name:     "search",
			args:     []string{"search", "protein"},
			contains: []string{"42", "protein bar"},
			excludes: []string{"Cola"},
		},
		{
			name:     "barcode",
			args:     []string{"barcode", "3017-6204-22003"},
			contains: []string{"Name:", "Nutella", "Nutri-Score:", "E (red)", "Fat /100g:", "30.9g"},
		},
		{
			name:     "categories",
			args:     []string{"categories"},
			contains: []string{"en:snacks", "Snacks", "1200"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			require.NoError(t, err, out)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestCLI_Errors(t *testing.T) {
	_, err := runCLI(t, "barcode", "abc")
	assert.ErrorContains(t, err, "must contain at least one digit")

	_, err = runCLI(t, "browse", "--sort", "price")
	assert.Error(t, err)
}

func TestCLI_Init(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PORT", "8181")
	path := filepath.Join(t.TempDir(), "explorer.yaml")

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--config", path}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("init")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Configuration written to")

	t.Setenv("PORT", "")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, 100, cfg.Capture.Quality)

	_, err = run("init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run("init", "--force")
	assert.NoError(t, err)
}
