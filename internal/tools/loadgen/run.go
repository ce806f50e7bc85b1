// Package loadgen drives a running server the way a room of voters would:
// shared-link sign-in, a realtime connection each, and one vote apiece.
package loadgen

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL       string
	SessionID     string
	AgendaID      string
	AccessCode    string
	Participants  int
	Concurrency   int
	Seed          uint64
	Linger        time.Duration
	AdminUser     string
	AdminPassword string
	// Drive moves the agenda to voting before the run and ends and publishes
	// it afterwards. It needs admin credentials.
	Drive bool
}

type Result struct {
	Participants  int
	Authenticated int
	Confirmed     int
	Rejected      map[string]int
	StatsUpdates  int
	FinalTotal    int
	Duration      time.Duration
}

// Summary renders the result as detail lines for the CLI.
func (r Result) Summary() []string {
	lines := []string{
		fmt.Sprintf("participants=%d authenticated=%d", r.Participants, r.Authenticated),
		fmt.Sprintf("votes confirmed=%d rejected=%d", r.Confirmed, r.rejectedTotal()),
		fmt.Sprintf("stats:updated frames observed=%d", r.StatsUpdates),
		fmt.Sprintf("duration=%s", r.Duration.Truncate(time.Millisecond)),
	}
	for code, n := range r.Rejected {
		lines = append(lines, fmt.Sprintf("rejected %s=%d", code, n))
	}
	if r.FinalTotal > 0 {
		lines = append(lines, fmt.Sprintf("published totalVotes=%d", r.FinalTotal))
	}
	return lines
}

func (r Result) rejectedTotal() int {
	n := 0
	for _, v := range r.Rejected {
		n += v
	}
	return n
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    string          `json:"id,omitempty"`
}

type runner struct {
	cfg    Config
	client *http.Client
	wsURL  string
	rng    *mrand.Rand
	rngMu  sync.Mutex

	authenticated atomic.Int64
	confirmed     atomic.Int64
	statsUpdates  atomic.Int64
	rejectedMu    sync.Mutex
	rejected      map[string]int
}

// Run executes one simulation. progress, when set, receives a status line as
// votes settle.
func Run(ctx context.Context, cfg Config, progress func(string)) (Result, error) {
	cfg = normalizeConfig(cfg)
	if cfg.SessionID == "" || cfg.AgendaID == "" {
		return Result{}, errors.New("session and agenda are required")
	}
	wsURL, err := websocketURL(cfg.BaseURL)
	if err != nil {
		return Result{}, err
	}
	if progress == nil {
		progress = func(string) {}
	}
	r := &runner{
		cfg:      cfg,
		client:   &http.Client{Timeout: 15 * time.Second},
		wsURL:    wsURL,
		rng:      mrand.New(mrand.NewPCG(cfg.Seed, cfg.Seed^0x5eed)),
		rejected: map[string]int{},
	}

	started := time.Now()
	var adminToken string
	if cfg.Drive {
		adminToken, err = r.adminLogin(ctx)
		if err != nil {
			return Result{}, err
		}
		if err := r.openVoting(ctx, adminToken); err != nil {
			return Result{}, fmt.Errorf("open voting: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i := 0; i < cfg.Participants; i++ {
		g.Go(func() error {
			err := r.voter(gctx, i)
			settled := r.confirmed.Load() + int64(r.rejectedCount())
			progress(fmt.Sprintf("%d/%d votes settled", settled, cfg.Participants))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return r.result(started), err
	}

	res := r.result(started)
	if cfg.Drive {
		if err := r.adminCall(ctx, adminToken, http.MethodPost, "/api/v1/agendas/"+cfg.AgendaID+"/end", nil, nil); err != nil {
			return res, fmt.Errorf("end voting: %w", err)
		}
		var published struct {
			Stats *struct {
				TotalVotes int `json:"totalVotes"`
			} `json:"stats"`
		}
		if err := r.adminCall(ctx, adminToken, http.MethodPost, "/api/v1/agendas/"+cfg.AgendaID+"/publish", nil, &published); err != nil {
			return res, fmt.Errorf("publish result: %w", err)
		}
		if published.Stats != nil {
			res.FinalTotal = published.Stats.TotalVotes
		}
	}
	res.Duration = time.Since(started)
	return res, nil
}

func (r *runner) result(started time.Time) Result {
	r.rejectedMu.Lock()
	rejected := make(map[string]int, len(r.rejected))
	for k, v := range r.rejected {
		rejected[k] = v
	}
	r.rejectedMu.Unlock()
	return Result{
		Participants:  r.cfg.Participants,
		Authenticated: int(r.authenticated.Load()),
		Confirmed:     int(r.confirmed.Load()),
		Rejected:      rejected,
		StatsUpdates:  int(r.statsUpdates.Load()),
		Duration:      time.Since(started),
	}
}

func (r *runner) reject(code string) {
	r.rejectedMu.Lock()
	r.rejected[code]++
	r.rejectedMu.Unlock()
}

func (r *runner) rejectedCount() int {
	r.rejectedMu.Lock()
	defer r.rejectedMu.Unlock()
	n := 0
	for _, v := range r.rejected {
		n += v
	}
	return n
}

// voter signs in, joins the session room and casts one vote. Rejections by
// the server are counted, not returned; only transport failures abort the run.
func (r *runner) voter(ctx context.Context, i int) error {
	var auth struct {
		AccessToken string `json:"accessToken"`
	}
	body := map[string]string{
		"sessionId":   r.cfg.SessionID,
		"displayName": fmt.Sprintf("sim-voter-%d", i+1),
		"fingerprint": fingerprint(),
	}
	if r.cfg.AccessCode != "" {
		body["accessCode"] = r.cfg.AccessCode
	}
	status, code, err := r.call(ctx, http.MethodPost, "/api/v1/auth/shared-link", "", body, &auth)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		r.reject("AUTH_" + code)
		return nil
	}
	r.authenticated.Add(1)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.wsURL+"?token="+url.QueryEscape(auth.AccessToken), nil)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	defer conn.Close()

	if err := r.send(conn, "join:session", "join", map[string]string{"sessionId": r.cfg.SessionID}); err != nil {
		return err
	}
	if err := r.send(conn, "vote:cast", "vote", map[string]string{"agendaId": r.cfg.AgendaID, "choice": r.choice()}); err != nil {
		return err
	}

	deadline := time.Now().Add(10 * time.Second)
	settled := false
	for {
		_ = conn.SetReadDeadline(deadline)
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if settled {
				return nil
			}
			return fmt.Errorf("read realtime frame: %w", err)
		}
		switch f.Event {
		case "vote:confirmed":
			r.confirmed.Add(1)
		case "vote:error":
			var e struct {
				Code string `json:"code"`
			}
			_ = json.Unmarshal(f.Data, &e)
			r.reject(e.Code)
		case "stats:updated":
			r.statsUpdates.Add(1)
			continue
		default:
			continue
		}
		if !settled {
			settled = true
			// Keep listening briefly for throttled statistics.
			deadline = time.Now().Add(r.cfg.Linger)
		}
	}
}

func (r *runner) send(conn *websocket.Conn, event, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(frame{Event: event, Data: raw, ID: id}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (r *runner) choice() string {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	switch n := r.rng.IntN(10); {
	case n < 6:
		return "approve"
	case n < 9:
		return "reject"
	default:
		return "abstain"
	}
}

func (r *runner) adminLogin(ctx context.Context) (string, error) {
	if r.cfg.AdminUser == "" {
		return "", errors.New("driving the agenda needs admin credentials")
	}
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	status, code, err := r.call(ctx, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{
		"username": r.cfg.AdminUser,
		"password": r.cfg.AdminPassword,
	}, &login)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("admin login failed: %s", code)
	}
	return login.AccessToken, nil
}

// openVoting moves the agenda to voting. A freshly created agenda sits in
// pending and has to pass through submitted first.
func (r *runner) openVoting(ctx context.Context, token string) error {
	path := "/api/v1/agendas/" + r.cfg.AgendaID + "/stage"
	status, code, err := r.call(ctx, http.MethodPut, path, token, map[string]string{"stage": "voting"}, nil)
	if err != nil {
		return err
	}
	switch {
	case status < 300:
		return nil
	case code != "INVALID_STAGE":
		return fmt.Errorf("%s %s: %d %s", http.MethodPut, path, status, code)
	}
	if err := r.adminCall(ctx, token, http.MethodPut, path, map[string]string{"stage": "submitted"}, nil); err != nil {
		return err
	}
	return r.adminCall(ctx, token, http.MethodPut, path, map[string]string{"stage": "voting"}, nil)
}

func (r *runner) adminCall(ctx context.Context, token, method, path string, body, out any) error {
	status, code, err := r.call(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, status, code)
	}
	return nil
}

// call performs one API request and decodes the envelope's data into out.
// It returns the HTTP status and the error code for non-2xx replies.
func (r *runner) call(ctx context.Context, method, path, token string, body, out any) (int, string, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, "", err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(r.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, classifyStatusClass(resp.StatusCode), nil
	}
	if !env.Success {
		code := classifyStatusClass(resp.StatusCode)
		if env.Error != nil && env.Error.Code != "" {
			code = env.Error.Code
		}
		return resp.StatusCode, code, nil
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, "", nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Participants <= 0 {
		cfg.Participants = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Concurrency > cfg.Participants {
		cfg.Concurrency = cfg.Participants
	}
	if cfg.Linger <= 0 {
		cfg.Linger = time.Second
	}
	return cfg
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

// fingerprint returns a device fingerprint that passes the server's length
// check.
func fingerprint() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return "sim-" + hex.EncodeToString(b)
}
