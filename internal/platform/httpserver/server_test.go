package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pollprogram "pollchain/contexts/ledger-voting/poll-program"
	pollhttp "pollchain/contexts/ledger-voting/poll-program/transport/http"

	"github.com/golang-jwt/jwt/v4"
)

func newTestServer(opts Options) (*Server, pollprogram.Module) {
	module := pollprogram.NewInMemoryModule(nil, time.Hour)
	module.Store.SetNow(time.Unix(500, 0))
	return New(module, nil, ":0", opts), module
}

func doRequest(t *testing.T, server *Server, method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) pollhttp.ErrorResponse {
	t.Helper()
	var resp pollhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body failed: %v body=%s", err, rr.Body.String())
	}
	return resp
}

func seedPoll(t *testing.T, server *Server) {
	t.Helper()
	payer := map[string]string{"X-User-Id": "payer-1"}
	rr := doRequest(t, server, http.MethodPost, "/v1/polls",
		`{"poll_id":1,"start_time":0,"end_time":1000,"question":"Best fruit?"}`, payer)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	for _, name := range []string{"Apple", "Banana"} {
		rr := doRequest(t, server, http.MethodPost, "/v1/polls/1/candidates", `{"candidate_name":"`+name+`"}`, payer)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201 for %s, got %d body=%s", name, rr.Code, rr.Body.String())
		}
	}
}

func TestVoteFlowMapsDomainErrors(t *testing.T) {
	server, module := newTestServer(Options{})
	seedPoll(t, server)

	rr := doRequest(t, server, http.MethodPost, "/v1/polls/1/votes", `{"candidate_name":"Apple"}`, map[string]string{"X-User-Id": "V1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var vote pollhttp.VoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &vote); err != nil {
		t.Fatalf("decode vote failed: %v", err)
	}
	if vote.Candidate.VoteCount != 1 || len(vote.Logs) != 2 || vote.Logs[1] != "Total votes for Apple: 1" {
		t.Fatalf("unexpected vote response: %+v", vote)
	}

	rr = doRequest(t, server, http.MethodPost, "/v1/polls/1/votes", `{"candidate_name":"Banana"}`, map[string]string{"X-User-Id": "V1"})
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != "already_voted" {
		t.Fatalf("expected already_voted 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	module.Store.SetNow(time.Unix(1500, 0))
	rr = doRequest(t, server, http.MethodPost, "/v1/polls/1/votes", `{"candidate_name":"Apple"}`, map[string]string{"X-User-Id": "V2"})
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != "poll_closed" {
		t.Fatalf("expected poll_closed 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodGet, "/v1/polls/1/candidates/Apple", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"vote_count":1`) {
		t.Fatalf("expected Apple with one vote, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodGet, "/v1/polls/1/voters/V2", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for rejected voter, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMutationsRequireSigner(t *testing.T) {
	server, _ := newTestServer(Options{})
	rr := doRequest(t, server, http.MethodPost, "/v1/polls", `{"poll_id":1,"end_time":10,"question":"Q"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInvalidRequestsAreRejected(t *testing.T) {
	server, _ := newTestServer(Options{})
	payer := map[string]string{"X-User-Id": "payer-1"}

	rr := doRequest(t, server, http.MethodGet, "/v1/polls/not-a-number", "", nil)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != "invalid_poll_id" {
		t.Fatalf("expected invalid_poll_id, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls", `{"poll_id":`, payer)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != "invalid_json" {
		t.Fatalf("expected invalid_json, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls", `{"poll_id":2,"start_time":10,"end_time":5,"question":"Q"}`, payer)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != "invalid_poll_window" {
		t.Fatalf("expected invalid_poll_window, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls", `{"poll_id":3,"end_time":5,"question":"`+strings.Repeat("x", 281)+`"}`, payer)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls/1/candidates", `{"candidate_name":" Apple"}`, payer)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != "invalid_input" {
		t.Fatalf("expected invalid_input for padded candidate name, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodGet, "/v1/polls/99", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestReinitializeAndCloseAuthority(t *testing.T) {
	server, _ := newTestServer(Options{})
	seedPoll(t, server)

	rr := doRequest(t, server, http.MethodPost, "/v1/polls",
		`{"poll_id":1,"start_time":0,"end_time":99,"question":"Reset?"}`, map[string]string{"X-User-Id": "attacker"})
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != "already_exists" {
		t.Fatalf("expected already_exists, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls/1/close", "", map[string]string{"X-User-Id": "attacker"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls/1/close", "", map[string]string{"X-User-Id": "payer-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodGet, "/v1/polls/1", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"closed":true`) || !strings.Contains(rr.Body.String(), `"question":"Best fruit?"`) {
		t.Fatalf("unexpected poll body: %d %s", rr.Code, rr.Body.String())
	}
}

func TestIdempotencyKeyReplaysVote(t *testing.T) {
	server, _ := newTestServer(Options{})
	seedPoll(t, server)
	headers := map[string]string{"X-User-Id": "V1", "Idempotency-Key": "vote-1"}

	first := doRequest(t, server, http.MethodPost, "/v1/polls/1/votes", `{"candidate_name":"Apple"}`, headers)
	second := doRequest(t, server, http.MethodPost, "/v1/polls/1/votes", `{"candidate_name":"Apple"}`, headers)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200 twice, got %d and %d", first.Code, second.Code)
	}
	if !strings.Contains(second.Body.String(), `"replayed":true`) {
		t.Fatalf("expected replayed response, got %s", second.Body.String())
	}
	conflict := doRequest(t, server, http.MethodPost, "/v1/polls/1/votes", `{"candidate_name":"Banana"}`, headers)
	if conflict.Code != http.StatusConflict || decodeError(t, conflict).Code != "idempotency_conflict" {
		t.Fatalf("expected idempotency_conflict, got %d body=%s", conflict.Code, conflict.Body.String())
	}
}

func TestJWTSignerResolution(t *testing.T) {
	secret := "test-secret"
	server, _ := newTestServer(Options{SignerJWTSecret: secret})

	sign := func(key string, subject string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte(key))
		if err != nil {
			t.Fatalf("sign token failed: %v", err)
		}
		return signed
	}

	body := `{"poll_id":1,"end_time":1000,"question":"Q"}`
	rr := doRequest(t, server, http.MethodPost, "/v1/polls", body, map[string]string{"X-User-Id": "payer-1"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected header identity to be ignored, got %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls", body, map[string]string{"Authorization": "Bearer " + sign("wrong", "payer-1")})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected forged token to be rejected, got %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/polls", body, map[string]string{"Authorization": "Bearer " + sign(secret, "payer-1")})
	if rr.Code != http.StatusCreated || !strings.Contains(rr.Body.String(), `"authority":"payer-1"`) {
		t.Fatalf("expected poll created by token subject, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHealthAndSwagger(t *testing.T) {
	server, _ := newTestServer(Options{EnableSwagger: true})
	rr := doRequest(t, server, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodGet, "/swagger/doc.json", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "/v1/polls/{poll_id}/votes") {
		t.Fatalf("expected swagger document, got %d body=%s", rr.Code, rr.Body.String())
	}

	plain, _ := newTestServer(Options{})
	rr = doRequest(t, plain, http.MethodGet, "/swagger/doc.json", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected swagger disabled, got %d", rr.Code)
	}
}
