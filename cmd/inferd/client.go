package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inferd/pkg/types"
)

// daemonURL builds the base URL for client subcommands from the configured
// listen address.
func daemonURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	addr := cfg.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr, nil
}

var clientHTTP = &http.Client{Timeout: 5 * time.Minute}

// callDaemon performs one JSON round trip against the daemon and decodes the
// response into out. Non-2xx responses are surfaced as the daemon's error
// payload.
func callDaemon(method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := clientHTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		var apiErr types.ErrorResponse
		if json.NewDecoder(res.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			if len(apiErr.Attempts) > 0 {
				for _, a := range apiErr.Attempts {
					fmt.Printf("  tried %s: %s (%dms)\n", a.TierID, a.Reason, a.LatencyMS)
				}
			}
			return fmt.Errorf("%s (%d)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("daemon returned %s", res.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
