package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/config"
)

// apiClient talks to a running `cw serve`.
type apiClient struct {
	base string
	http *http.Client
}

// addClientFlags registers --config and --url on cmd.
func addClientFlags(cmd *cobra.Command, configPath, url *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to cell config file")
	cmd.Flags().StringVar(url, "url", "", "base URL of the cell API (default from api.port in config)")
}

// newAPIClient returns a client for url, or for the API port in the config
// when url is empty.
func newAPIClient(configPath, url string) (*apiClient, error) {
	if url == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		url = fmt.Sprintf("http://localhost:%d", cfg.API.Port)
	}
	return &apiClient{
		base: strings.TrimRight(url, "/") + "/api/v1",
		http: &http.Client{Timeout: 3 * time.Minute},
	}, nil
}

func (c *apiClient) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *apiClient) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *apiClient) do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
