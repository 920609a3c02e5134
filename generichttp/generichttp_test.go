package generichttp

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
)

func ExampleRouteTable_Endpoints() {
	rt := RouteTable{
		{Method: http.MethodPost, Path: "/b"}: nil,
		{Method: http.MethodGet, Path: "/b"}:  nil,
		{Method: http.MethodGet, Path: "/a"}:  nil,
	}
	fmt.Println(rt.Endpoints())
	// Output: [GET /a GET /b POST /b]
}

func TestBind(t *testing.T) {
	called := false
	rt := RouteTable{
		{Method: http.MethodPost, Path: "/go"}: Do(func() error { called = true; return nil }),
	}
	r := chi.NewRouter()
	rt.Bind(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/go", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for an unbound method, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/go", nil))
	if w.Code != http.StatusOK || !called {
		t.Errorf("expected the handler to run, got %d", w.Code)
	}
}

func TestDoStatus(t *testing.T) {
	errGone := errors.New("gone")
	h := DoStatus(func() error { return errGone }, func(err error) int {
		if errors.Is(err, errGone) {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	})
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "gone") {
		t.Errorf("expected 404 with the error text, got %d %q", w.Code, w.Body.String())
	}
}

func TestSetFloats(t *testing.T) {
	var got []float64
	h := SetFloats(func(fs []float64) error { got = fs; return nil })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"f64s": [1, 2.5]}`)))
	if w.Code != http.StatusOK || len(got) != 2 || got[1] != 2.5 {
		t.Errorf("expected [1 2.5] with 200, got %v with %d", got, w.Code)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[1, 2]`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed body, got %d", w.Code)
	}
}

func TestGetFloatsEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	GetFloats(func() ([]float64, error) { return nil, nil })(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if body := strings.TrimSpace(w.Body.String()); body != `{"f64s":[]}` {
		t.Errorf("expected an empty list, got %s", body)
	}
}

func TestErrorsAre500(t *testing.T) {
	w := httptest.NewRecorder()
	GetBool(func() (bool, error) { return false, errors.New("boom") })(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "boom") {
		t.Errorf("expected 500 with the error text, got %d %s", w.Code, w.Body.String())
	}
}
