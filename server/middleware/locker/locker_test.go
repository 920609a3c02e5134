package locker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nanocal/nanocontrol/generichttp"
)

type httper struct {
	rt generichttp.RouteTable
}

func (h httper) RT() generichttp.RouteTable { return h.rt }

func TestInject(t *testing.T) {
	h := httper{rt: generichttp.RouteTable{}}
	Inject(h, New())
	for _, m := range []string{http.MethodGet, http.MethodPost} {
		if _, ok := h.rt[generichttp.MethodPath{Method: m, Path: "/lock"}]; !ok {
			t.Errorf("expected %s /lock", m)
		}
	}
}

func TestCheck(t *testing.T) {
	l := New()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := l.Check(next)
	cases := []struct {
		locked bool
		method string
		path   string
		code   int
	}{
		{false, http.MethodPost, "/fh/run", http.StatusTeapot},
		{true, http.MethodPost, "/fh/run", http.StatusLocked},
		{true, http.MethodGet, "/fh/status", http.StatusTeapot},
		{true, http.MethodPost, "/lock", http.StatusTeapot},
	}
	for _, c := range cases {
		if c.locked {
			l.Lock()
		} else {
			l.Unlock()
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(c.method, c.path, nil))
		if w.Code != c.code {
			t.Errorf("%s %s locked=%v: expected %d got %d", c.method, c.path, c.locked, c.code, w.Code)
		}
	}
}
