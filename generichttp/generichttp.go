// Package generichttp holds the route table the HTTP front-end is built on
// and small handler factories that wrap plain Go functions as JSON endpoints
package generichttp

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
)

// MethodPath is a route key, e.g. {GET, /fh/status}
type MethodPath struct {
	Method string
	Path   string
}

func (mp MethodPath) String() string {
	return mp.Method + " " + mp.Path
}

// RouteTable maps routes to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Bind registers every route on r
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
}

// Endpoints lists the routes as "METHOD /path", sorted by path then method
func (rt RouteTable) Endpoints() []string {
	keys := make([]MethodPath, 0, len(rt))
	for k := range rt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path == keys[j].Path {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// HTTPer is something with a route table
type HTTPer interface {
	RT() RouteTable
}

// BoolT is the body {"bool": value}
type BoolT struct {
	Bool bool `json:"bool"`
}

// StrT is the body {"str": value}
type StrT struct {
	Str string `json:"str"`
}

// FloatsT is the body {"f64s": [values...]}
type FloatsT struct {
	F64s []float64 `json:"f64s"`
}

// Reply encodes v as JSON with status 200
func Reply(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// the status line is already out, nothing more to tell the client
		return
	}
}

// Do calls fcn and replies 200 with no body, or 500 with the error text
func Do(fcn func() error) http.HandlerFunc {
	return DoStatus(fcn, nil)
}

// DoStatus is Do with the error status chosen by status.  A nil status
// always gives 500.
func DoStatus(fcn func() error, status func(error) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fcn(); err != nil {
			code := http.StatusInternalServerError
			if status != nil {
				code = status(err)
			}
			http.Error(w, err.Error(), code)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetJSON calls fcn and replies with its result encoded as JSON
func GetJSON(fcn func() (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		Reply(w, v)
	}
}

// GetBool calls a bool-getting function and returns the response
// as json {"bool": value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		Reply(w, BoolT{Bool: b})
	}
}

// SetBool parses a JSON input of {"bool": value} and
// calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(b.Bool); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetFloats calls a slice-getting function and returns the response
// as json {"f64s": [values...]}
func GetFloats(fcn func() ([]float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fs, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if fs == nil {
			fs = []float64{}
		}
		Reply(w, FloatsT{F64s: fs})
	}
}

// SetFloats parses a JSON input of {"f64s": [values...]} and
// calls fcn with it
func SetFloats(fcn func([]float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := FloatsT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(f.F64s); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
