package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// --- helpers ---

func platformServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, "svc_test_token", 5*time.Second)
}

// --- ListKeys tests ---

func TestListKeys_BareArray(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/auth-keys" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer svc_test_token" {
			t.Errorf("unexpected authorization header: %s", got)
		}

		q := r.URL.Query()
		if q.Get("plan_id") != "plan-gold" {
			t.Errorf("unexpected plan_id: %s", q.Get("plan_id"))
		}
		if q.Get("status") != "active" {
			t.Errorf("unexpected status: %s", q.Get("status"))
		}
		if q.Get("limit") != "1000" {
			t.Errorf("unexpected limit: %s", q.Get("limit"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"k1","code":"AV-1111","plan_id":"plan-gold","status":"active","created_at":"2026-05-01T00:00:00Z"},
			{"id":"k2","code":"AV-2222","plan_id":"plan-gold","status":"active","created_at":"2026-05-01T00:00:01Z"}
		]`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	keys, err := c.ListKeys(context.Background(), ListKeysParams{
		PlanID: "plan-gold",
		Status: "active",
		Limit:  1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0].Code != "AV-1111" {
		t.Errorf("unexpected code: %s", keys[0].Code)
	}
	if keys[1].ID != "k2" {
		t.Errorf("unexpected id: %s", keys[1].ID)
	}
}

func TestListKeys_PaginatedEnvelope(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"docs": [
					{"id":"k1","code":"AV-1111","plan_id":"plan-gold","status":"active","created_at":"2026-05-01T00:00:00Z"}
				],
				"pagination": {"page":1,"limit":10,"total":1}
			}
		}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	keys, err := c.ListKeys(context.Background(), ListKeysParams{PlanID: "plan-gold"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	if keys[0].ID != "k1" {
		t.Errorf("unexpected id: %s", keys[0].ID)
	}
}

func TestListKeys_FlatDataEnvelope(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"k9","code":"AV-9999","plan_id":"p","status":"active","created_at":"2026-05-01T00:00:00Z"}]}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	keys, err := c.ListKeys(context.Background(), ListKeysParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 || keys[0].ID != "k9" {
		t.Fatalf("unexpected keys: %+v", keys)
	}
}

func TestListKeys_UnrecognizedShape(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"surprise": 42}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	keys, err := c.ListKeys(context.Background(), ListKeysParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keys == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(keys) != 0 {
		t.Fatalf("expected 0 keys, got %d", len(keys))
	}
}

// --- GenerateKeys tests ---

func TestGenerateKeys_Success(t *testing.T) {
	var gotBody map[string]any
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/auth-keys/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"success":true}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	err := c.GenerateKeys(context.Background(), "plan-gold", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["plan_id"] != "plan-gold" {
		t.Errorf("unexpected plan_id: %v", gotBody["plan_id"])
	}
	if gotBody["quantity"] != float64(25) {
		t.Errorf("unexpected quantity: %v", gotBody["quantity"])
	}
}

func TestGenerateKeys_ApplicationRejection(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Application failure carried in a 200 response.
		w.Write([]byte(`{"success":false,"message":"plan not found"}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	err := c.GenerateKeys(context.Background(), "plan-missing", 10)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if got := err.Error(); got != "platform rejected request: plan not found" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestGenerateKeys_HTTPError(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"quantity out of range"}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	err := c.GenerateKeys(context.Background(), "plan-gold", 0)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

// --- Distribute tests ---

func TestDistributeToAccount(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/auth-keys/k1/distribute" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["account_id"] != "acct-7" {
			t.Errorf("unexpected account_id: %v", body["account_id"])
		}
		w.Write([]byte(`{"success":true}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	if err := c.DistributeToAccount(context.Background(), "k1", "acct-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDistributeToEmail_AlreadyDistributed(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/auth-keys/k2/distribute-email" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":false,"message":"key already distributed"}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	err := c.DistributeToEmail(context.Background(), "k2", "ops@example.com")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

// --- KeyStats tests ---

func TestKeyStats_Enveloped(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/auth-keys/stats" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"success": true,
			"data": {
				"total": 100, "active": 60, "used": 40,
				"distributed": 30, "not_distributed": 70, "remaining": 30,
				"stats_by_plan": [
					{"plan_id":"plan-gold","total":100,"active":60,"used":40,"distributed":30,"not_distributed":70,"remaining":30}
				]
			}
		}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	stats, err := c.KeyStats(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 100 || stats.Remaining != 30 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.StatsByPlan) != 1 || stats.StatsByPlan[0].PlanID != "plan-gold" {
		t.Errorf("unexpected per-plan stats: %+v", stats.StatsByPlan)
	}
}

func TestKeyStats_BareObject(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":5,"active":5,"used":0,"distributed":0,"not_distributed":5,"remaining":5,"stats_by_plan":[]}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	stats, err := c.KeyStats(context.Background(), "plan-gold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 5 || stats.Remaining != 5 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// --- ListAccounts tests ---

func TestListAccounts(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/users" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("search") != "jane" {
			t.Errorf("unexpected search: %s", r.URL.Query().Get("search"))
		}
		w.Write([]byte(`{"data":[{"id":"acct-1","name":"Jane Doe","email":"jane@example.com","kyc_status":"verified"}]}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	accounts, err := c.ListAccounts(context.Background(), "jane", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].Email != "jane@example.com" {
		t.Errorf("unexpected email: %s", accounts[0].Email)
	}
}

// --- transport classification ---

func TestUnreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "tok", 500*time.Millisecond)
	_, err := c.ListKeys(context.Background(), ListKeysParams{})
	if !errors.Is(err, ErrUnreachable) && !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected transport sentinel, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`[]`))
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "tok", 50*time.Millisecond)
	_, err := c.ListKeys(context.Background(), ListKeysParams{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestReady(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
