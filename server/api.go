package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Commands that mutate tracking state are rate limited per client IP
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/status", s.httpStatus)
	handle("GET", "/api/markers", s.httpMarkers)
	handle("GET", "/api/history", s.httpHistory)
	handle("GET", "/api/sightings", s.httpSightings)
	ratelimited("POST", "/api/observer", s.httpSetObserver, 100, time.Second)
	ratelimited("POST", "/api/candidates", s.httpSubmitCandidates, 100, time.Second)
	ratelimited("POST", "/api/reset", s.httpReset, 10, time.Second)
	ratelimited("POST", "/api/restart", s.httpRestart, 2, time.Second)
	handle("GET", "/api/ws/markers", s.httpStreamMarkers)

	s.httpRouter = router
}
