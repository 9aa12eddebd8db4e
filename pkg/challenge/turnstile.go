// Package challenge verifies Cloudflare Turnstile tokens.
package challenge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"anoa.com/bountyboard/pkg/logger"
)

const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier reports whether a challenge token was solved by a human. Any
// failure to reach a verdict is reported as false.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

type turnstileVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func NewTurnstileVerifier(secret, verifyURL string) Verifier {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &turnstileVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *turnstileVerifier) Verify(ctx context.Context, token, remoteIP string) bool {
	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}
	if remoteIP != "" && remoteIP != "unknown" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		logger.WithComponent("challenge").Errorf("build siteverify request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		logger.WithComponent("challenge").Warnf("siteverify call failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.WithComponent("challenge").Warnf("siteverify returned %d", resp.StatusCode)
		return false
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		logger.WithComponent("challenge").Warnf("decode siteverify response: %v", err)
		return false
	}
	if !out.Success {
		logger.WithComponent("challenge").WithField("error_codes", out.ErrorCodes).Info("challenge rejected")
	}
	return out.Success
}
