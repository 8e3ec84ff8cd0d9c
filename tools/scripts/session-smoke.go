// Package main is a CI-friendly end-to-end smoke test for the session lifecycle.
//
// Against a running server with an existing account it checks:
//   - login sets the session cookie
//   - the /ws stream authenticates with that cookie (ready, ping/pong)
//   - a second login supersedes the first: the stream receives
//     session.superseded and closes, and the old cookie stops working
//   - logout revokes the new session
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	subprotocol       = "securebank.session.v1"
	cookieName        = "session"
	closeSessionEnded = websocket.StatusCode(4001)
)

type event struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func main() {
	var (
		base     = flag.String("base", "http://127.0.0.1:8080", "Server base URL")
		origin   = flag.String("origin", "http://localhost", "Origin header for the websocket handshake")
		email    = flag.String("email", os.Getenv("SMOKE_EMAIL"), "Account email (default $SMOKE_EMAIL)")
		password = flag.String("password", os.Getenv("SMOKE_PASSWORD"), "Account password (default $SMOKE_PASSWORD)")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	baseURL, err := url.Parse(strings.TrimRight(*base, "/"))
	if err != nil || (baseURL.Scheme != "http" && baseURL.Scheme != "https") || baseURL.Host == "" {
		fatalf("invalid -base: %q", *base)
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		fatalf("-email and -password are required")
	}

	client := &http.Client{Timeout: *timeout}
	root := context.Background()

	first := mustLogin(client, baseURL, *email, *password)

	conn := mustDial(root, baseURL, *origin, first, *timeout)
	defer func() { _ = conn.CloseNow() }()

	mustReadType(root, conn, "session.ready", *timeout)
	mustWrite(root, conn, `{"type":"ping"}`, *timeout)
	mustReadType(root, conn, "pong", *timeout)

	second := mustLogin(client, baseURL, *email, *password)
	if second.Value == first.Value {
		fatalf("second login reused the first token")
	}

	mustReadType(root, conn, "session.superseded", *timeout)
	mustClosedWith(root, conn, closeSessionEnded, *timeout)

	if code := mustGet(client, baseURL, "/me", first); code != http.StatusUnauthorized {
		fatalf("superseded cookie: /me returned %d, want 401", code)
	}
	if code := mustGet(client, baseURL, "/me", second); code != http.StatusOK {
		fatalf("current cookie: /me returned %d, want 200", code)
	}

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	mustPost(client, baseURL, "/auth/logout", nil, second, &out)
	if !out.Success {
		fatalf("logout: success=false message=%q", out.Message)
	}
	if code := mustGet(client, baseURL, "/me", second); code != http.StatusUnauthorized {
		fatalf("after logout: /me returned %d, want 401", code)
	}

	if *verbose {
		fmt.Printf("first=%s… second=%s…\n", prefix(first.Value), prefix(second.Value))
	}
	fmt.Println("OK: login, stream, supersede, logout")
}

func mustLogin(client *http.Client, base *url.URL, email, password string) *http.Cookie {
	res := mustPost(client, base, "/auth/login", map[string]string{"email": email, "password": password}, nil, nil)
	for _, c := range res.Cookies() {
		if c.Name == cookieName && c.Value != "" {
			return c
		}
	}
	fatalf("login: no %q cookie in response", cookieName)
	return nil
}

func mustPost(client *http.Client, base *url.URL, path string, body any, cookie *http.Cookie, out any) *http.Response {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s: %v", path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, base.JoinPath(path).String(), rd)
	if err != nil {
		fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	res, err := client.Do(req)
	if err != nil {
		fatalf("POST %s: %v", path, err)
	}
	defer func() { _ = res.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode != http.StatusOK {
		fatalf("POST %s: status=%d body=%s", path, res.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			fatalf("POST %s: decode: %v", path, err)
		}
	}
	return res
}

func mustGet(client *http.Client, base *url.URL, path string, cookie *http.Cookie) int {
	req, err := http.NewRequest(http.MethodGet, base.JoinPath(path).String(), nil)
	if err != nil {
		fatalf("request %s: %v", path, err)
	}
	req.AddCookie(cookie)
	res, err := client.Do(req)
	if err != nil {
		fatalf("GET %s: %v", path, err)
	}
	_ = res.Body.Close()
	return res.StatusCode
}

func mustDial(parent context.Context, base *url.URL, origin string, cookie *http.Cookie, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	wsURL := *base.JoinPath("/ws")
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	h.Set("Cookie", cookie.Name+"="+cookie.Value)

	conn, resp, err := websocket.Dial(ctx, wsURL.String(), &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("dial %s: %v", wsURL.String(), err)
	}
	if got := conn.Subprotocol(); got != subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, subprotocol)
	}
	return conn
}

func mustReadType(parent context.Context, conn *websocket.Conn, want string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		fatalf("waiting for %q: %v", want, err)
	}
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		fatalf("bad json while waiting for %q: %v", want, err)
	}
	if ev.Type == "error" {
		fatalf("server error: code=%q msg=%q", ev.Code, ev.Message)
	}
	if ev.Type != want {
		fatalf("unexpected event: got=%q want=%q", ev.Type, want)
	}
}

func mustWrite(parent context.Context, conn *websocket.Conn, frame string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustClosedWith(parent context.Context, conn *websocket.Conn, want websocket.StatusCode, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	_, _, err := conn.Read(ctx)
	if err == nil {
		fatalf("expected close %d, got another frame", want)
	}
	if got := websocket.CloseStatus(err); got != want {
		if errors.Is(err, context.DeadlineExceeded) {
			fatalf("timeout waiting for close %d", want)
		}
		fatalf("close status: got=%d want=%d err=%v", got, want, err)
	}
}

func prefix(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
