// Package e2e smoke-tests a deployed gateway through the API management front
// door.
package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
)

// SubscriptionKeyHeader carries the API management subscription key
const SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

const chatPrompt = "Hello, can you help me with a simple test question?"

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
)

// Config configures a Runner
type Config struct {
	BaseURL         string
	SubscriptionKey string
	Out             io.Writer

	// HTTPClient defaults to http.DefaultClient; per request timeouts are
	// applied through the context
	HTTPClient *http.Client

	// Pause separates checks, RateLimitDelay separates the rate limit requests
	Pause          time.Duration
	RateLimitDelay time.Duration
}

// Result is the outcome of one check
type Result struct {
	Name   string
	Passed bool
}

type check struct {
	name string
	fn   func(ctx context.Context) (bool, error)
}

// Runner executes the checks sequentially
type Runner struct {
	baseURL        string
	key            string
	out            io.Writer
	client         *http.Client
	pause          time.Duration
	rateLimitDelay time.Duration
}

// NewRunner creates a runner
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway url is required")
	}
	if cfg.Out == nil {
		return nil, fmt.Errorf("output writer is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Runner{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		key:            cfg.SubscriptionKey,
		out:            cfg.Out,
		client:         client,
		pause:          cfg.Pause,
		rateLimitDelay: cfg.RateLimitDelay,
	}, nil
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Run executes every check. A failing check never stops the others.
func (r *Runner) Run(ctx context.Context) []Result {
	r.printf("🚀 Starting E2E tests for APIM Gateway: %s", r.baseURL)
	r.printf("%s", strings.Repeat("=", 60))

	checks := []check{
		{"health_endpoint", r.checkHealth},
		{"agent_endpoint", r.checkAgent},
		{"chat_endpoint", r.checkChat},
		{"rate_limiting", r.checkRateLimiting},
		{"frontend_access", r.checkFrontend},
	}

	results := make([]Result, 0, len(checks))
	for i, c := range checks {
		r.printf("\n📋 Running test: %s", c.name)
		results = append(results, Result{Name: c.name, Passed: r.runCheck(ctx, c)})

		if i < len(checks)-1 && !sleep(ctx, r.pause) {
			// cancelled, remaining checks fail without running
			for _, rest := range checks[i+1:] {
				results = append(results, Result{Name: rest.name})
			}
			break
		}
	}
	return results
}

func (r *Runner) runCheck(ctx context.Context, c check) (passed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.printf("❌ %s error: %v", c.name, rec)
			passed = false
		}
	}()

	ok, err := c.fn(ctx)
	if err != nil {
		return false
	}
	return ok
}

// Summary prints the result table and reports whether every check passed
func (r *Runner) Summary(results []Result) bool {
	r.printf("\n%s", strings.Repeat("=", 60))
	r.printf("📊 TEST SUMMARY")
	r.printf("%s", strings.Repeat("=", 60))

	passed := 0
	for _, res := range results {
		status := failColor.Sprint("❌ FAIL")
		if res.Passed {
			status = passColor.Sprint("✅ PASS")
			passed++
		}
		r.printf("%-20s : %s", res.Name, status)
	}

	r.printf("\n🎯 Overall: %d/%d tests passed", passed, len(results))

	if passed == len(results) {
		r.printf("🎉 All tests passed! Your APIM setup is working correctly.")
		return true
	}
	r.printf("⚠️ Some tests failed. Please check the configuration.")
	return false
}

func (r *Runner) do(ctx context.Context, method, path string, body io.Reader, timeout time.Duration, withKey bool) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if withKey {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SubscriptionKeyHeader, r.key)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

func (r *Runner) checkHealth(ctx context.Context) (bool, error) {
	r.printf("🔍 Testing health endpoint...")

	resp, cancel, err := r.do(ctx, http.MethodGet, "/api/health", nil, 30*time.Second, true)
	if err != nil {
		r.printf("❌ Health check error: %v", err)
		return false, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		r.printf("❌ Health check failed: %d - %s", resp.StatusCode, body)
		return false, nil
	}

	if !json.Valid(body) {
		r.printf("❌ Health check error: response is not JSON")
		return false, nil
	}
	r.printf("✅ Health check passed: %s", bytes.TrimSpace(body))
	return true, nil
}

func (r *Runner) checkAgent(ctx context.Context) (bool, error) {
	r.printf("🔍 Testing agent endpoint...")

	resp, cancel, err := r.do(ctx, http.MethodGet, "/api/agent", nil, 30*time.Second, true)
	if err != nil {
		r.printf("❌ Agent endpoint error: %v", err)
		return false, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		r.printf("❌ Agent endpoint failed: %d - %s", resp.StatusCode, body)
		return false, nil
	}

	var agent struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &agent); err != nil {
		r.printf("❌ Agent endpoint error: %v", err)
		return false, err
	}
	if agent.Name == "" {
		agent.Name = "Unknown Agent"
	}
	r.printf("✅ Agent endpoint passed: %s", agent.Name)
	return true, nil
}

func (r *Runner) checkChat(ctx context.Context) (bool, error) {
	r.printf("🔍 Testing chat endpoint...")

	payload, _ := json.Marshal(map[string]string{"message": chatPrompt})
	resp, cancel, err := r.do(ctx, http.MethodPost, "/api/chat", bytes.NewReader(payload), 60*time.Second, true)
	if err != nil {
		r.printf("❌ Chat endpoint error: %v", err)
		return false, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.printf("❌ Chat endpoint failed: %d - %s", resp.StatusCode, body)
		return false, nil
	}
	r.printf("✅ Chat endpoint accessible")

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var chunk struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil || chunk.Content == "" {
			continue
		}

		r.printf("✅ Received chat response: %s...", prefix(chunk.Content, 50))
		r.printf("✅ Chat streaming working correctly")
		return true, nil
	}
	if err := scanner.Err(); err != nil {
		r.printf("❌ Chat endpoint error: %v", err)
		return false, err
	}

	r.printf("⚠️ Chat endpoint accessible but no content received")
	return false, nil
}

func (r *Runner) checkRateLimiting(ctx context.Context) (bool, error) {
	r.printf("🔍 Testing rate limiting...")

	for i := 0; i < 5; i++ {
		resp, cancel, err := r.do(ctx, http.MethodGet, "/api/health", nil, 10*time.Second, true)
		if err != nil {
			r.printf("❌ Rate limiting test error: %v", err)
			return false, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		cancel()

		r.printf("Request %d: %d", i+1, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			r.printf("✅ Rate limiting is working (received 429 Too Many Requests)")
			return true, nil
		}

		if !sleep(ctx, r.rateLimitDelay) {
			return false, ctx.Err()
		}
	}

	r.printf("⚠️ Rate limiting not triggered (may need higher traffic)")
	return true, nil
}

func (r *Runner) checkFrontend(ctx context.Context) (bool, error) {
	r.printf("🔍 Testing frontend access...")

	resp, cancel, err := r.do(ctx, http.MethodGet, "/", nil, 30*time.Second, false)
	if err != nil {
		r.printf("❌ Frontend access error: %v", err)
		return false, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if resp.StatusCode == http.StatusOK && (strings.Contains(page, "react-root") || strings.Contains(page, "AI Agents")) {
		r.printf("✅ React frontend accessible")
		return true, nil
	}

	r.printf("❌ Frontend access failed: %d", resp.StatusCode)
	return false, nil
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}

// sleep waits for d or until ctx is done, reporting whether it waited fully
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
