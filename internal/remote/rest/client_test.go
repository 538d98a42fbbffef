package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/remote"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type fakeServer struct {
	mu   sync.Mutex
	reqs []recorded
	srv  *httptest.Server
}

func newFakeServer(t *testing.T, h func(w http.ResponseWriter, r *http.Request, body string)) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.reqs = append(fs.reqs, recorded{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Clone(), string(b)})
		fs.mu.Unlock()
		h(w, r, string(b))
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) last() recorded {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.reqs[len(fs.reqs)-1]
}

func newClient(t *testing.T, fs *fakeServer) *Client {
	t.Helper()
	c, err := New(Options{URL: fs.srv.URL, APIKey: "anon-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	cases := []Options{
		{},
		{URL: "https://x.example.com"},
		{APIKey: "k"},
		{URL: "ftp://x.example.com", APIKey: "k"},
	}
	for _, o := range cases {
		if _, err := New(o); err == nil {
			t.Fatalf("expected error for %+v", o)
		}
	}
}

func TestListMerchants_RangeAndHeaders(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		_, _ = io.WriteString(w, `[{"id":1,"name":"A","category":"Food","menu_items":[{"id":5,"name":"Tea","price":"3.5","merchant_id":1}],"menu_images":[]}]`)
	})
	c := newClient(t, fs)

	rows, err := c.ListMerchants(context.Background(), 1000, 1999)
	if err != nil {
		t.Fatalf("ListMerchants: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "1" || float64(rows[0].MenuItems[0].Price) != 3.5 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	req := fs.last()
	if req.Method != http.MethodGet || req.Path != "/rest/v1/merchants" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	for _, want := range []string{"offset=1000", "limit=1000", "order=created_at.asc%2Cid.asc", "select=%2A%2Cmenu_items%28%2A%29%2Cmenu_images%28%2A%29"} {
		if !strings.Contains(req.Query, want) {
			t.Fatalf("query %q missing %q", req.Query, want)
		}
	}
	if req.Header.Get("apikey") != "anon-key" || req.Header.Get("Authorization") != "Bearer anon-key" {
		t.Fatalf("auth headers not set: %v", req.Header)
	}
}

func TestGetMerchant_FoundAndNotFound(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		if r.URL.Query().Get("id") == "eq.7" {
			_, _ = io.WriteString(w, `[{"id":7,"name":"Seven","category":"Cafe","menu_items":[],"menu_images":[]}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})
	c := newClient(t, fs)

	row, err := c.GetMerchant(context.Background(), "7")
	if err != nil || row.Name != "Seven" {
		t.Fatalf("GetMerchant: row=%+v err=%v", row, err)
	}
	if q := fs.last().Query; !strings.Contains(q, "menu_items%28id%2Cname%2Cprice%2Cmerchant_id%29") {
		t.Fatalf("detail select missing nested children: %s", q)
	}
	if _, err := c.GetMerchant(context.Background(), "8"); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertMerchant_ReturnsRepresentation(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		var in []map[string]any
		_ = json.Unmarshal([]byte(body), &in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 99, "name": in[0]["name"], "category": in[0]["category"]}})
	})
	c := newClient(t, fs)

	row, err := c.InsertMerchant(context.Background(), remote.MerchantInsert{Name: "New", Category: "Bakery"})
	if err != nil {
		t.Fatalf("InsertMerchant: %v", err)
	}
	if row.ID != "99" || row.Name != "New" {
		t.Fatalf("unexpected row: %+v", row)
	}
	req := fs.last()
	if req.Method != http.MethodPost || req.Header.Get("Prefer") != "return=representation" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.HasPrefix(req.Body, "[{") {
		t.Fatalf("insert body should be an array: %s", req.Body)
	}
}

func TestUpdateMerchant_SendsOnlyColumns(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newClient(t, fs)

	name := "Renamed"
	menu := []domain.MenuItem{{ID: "1"}}
	u := remote.MerchantUpdateFromPatch(domain.MerchantPatch{Name: &name, Logo: domain.SetNull[string](), Menu: &menu})
	if err := c.UpdateMerchant(context.Background(), "3", u); err != nil {
		t.Fatalf("UpdateMerchant: %v", err)
	}
	req := fs.last()
	if req.Method != http.MethodPatch || req.Query != "id=eq.3" {
		t.Fatalf("unexpected request %s ?%s", req.Method, req.Query)
	}
	if req.Body != `{"logo":null,"name":"Renamed"}` {
		t.Fatalf("unexpected body %s", req.Body)
	}

	n := len(fs.reqs)
	if err := c.UpdateMerchant(context.Background(), "3", remote.MerchantUpdate{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if len(fs.reqs) != n {
		t.Fatalf("empty update should not hit the network")
	}
}

func TestErrorsBecomeStatusError(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value"}`)
	})
	c := newClient(t, fs)

	err := c.DeleteMenuItem(context.Background(), "1")
	var se *remote.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T %v", err, err)
	}
	if se.Status != http.StatusConflict || se.Message != "duplicate key value" {
		t.Fatalf("unexpected status error: %+v", se)
	}
}

func TestRecommendations(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"id":1,"name":"n","contact":"c","message":"m","done":false,"created_at":"2024-05-01T10:00:00Z"}]`)
		case http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c := newClient(t, fs)

	rows, err := c.ListRecommendations(context.Background(), 1000)
	if err != nil || len(rows) != 1 || rows[0].CreatedAt == nil {
		t.Fatalf("ListRecommendations: rows=%+v err=%v", rows, err)
	}
	if q := fs.last().Query; !strings.Contains(q, "limit=1000") || !strings.Contains(q, "order=created_at.asc") {
		t.Fatalf("unexpected query: %s", q)
	}
	if err := c.SetRecommendationDone(context.Background(), "1", true); err != nil {
		t.Fatalf("SetRecommendationDone: %v", err)
	}
	if body := fs.last().Body; body != `{"done":true}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestStorage_PutPublicURLDelete(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		_, _ = io.WriteString(w, `{"Key":"menu-images/a.jpg"}`)
	})
	c := newClient(t, fs)
	ctx := context.Background()

	if err := c.Put(ctx, "a b.jpg", strings.NewReader("jpeg-bytes"), "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	req := fs.last()
	if req.Method != http.MethodPost || req.Path != "/storage/v1/object/menu-images/a b.jpg" {
		t.Fatalf("unexpected upload %s %s", req.Method, req.Path)
	}
	if req.Header.Get("Content-Type") != "image/jpeg" || req.Header.Get("x-upsert") != "false" || req.Body != "jpeg-bytes" {
		t.Fatalf("unexpected upload headers/body: %+v", req)
	}

	want := fs.srv.URL + "/storage/v1/object/public/menu-images/a%20b.jpg"
	if got := c.PublicURL("a b.jpg"); got != want {
		t.Fatalf("PublicURL = %q, want %q", got, want)
	}
	if got := remote.ObjectPath(c.PublicURL("a b.jpg")); got != "a b.jpg" {
		t.Fatalf("ObjectPath(PublicURL) = %q", got)
	}

	if err := c.Delete(ctx, "a.jpg", "b.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	req = fs.last()
	if req.Method != http.MethodDelete || req.Path != "/storage/v1/object/menu-images" || req.Body != `{"prefixes":["a.jpg","b.jpg"]}` {
		t.Fatalf("unexpected delete: %+v", req)
	}
}

func TestListMerchants_PagesAreIndependent(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		off, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": off + 1, "name": "x"}})
	})
	c := newClient(t, fs)
	a, _ := c.ListMerchants(context.Background(), 0, 9)
	b, _ := c.ListMerchants(context.Background(), 10, 19)
	if a[0].ID != "1" || b[0].ID != "11" {
		t.Fatalf("unexpected ids %s %s", a[0].ID, b[0].ID)
	}
}
