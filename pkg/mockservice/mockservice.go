// Package mockservice serves a described service from scripted fixtures:
// an HTTP double for tests and local development that speaks the same
// wire protocols the client does, without any real backend.
package mockservice

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/courier/pkg/protocol"
	"github.com/hashicorp-forge/courier/pkg/service"
)

// Stub is one scripted response. Stubs for an operation serve in order;
// Repeat caps how many times a stub serves before the next takes over. An
// uncapped final stub serves forever, a capped one exhausts the fixture.
type Stub struct {
	Status  int               `yaml:"status"`
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
	Repeat  int               `yaml:"repeat"`
}

// Config assembles a Server.
type Config struct {
	// Description drives routing: awsjson operations dispatch on the
	// target header, restjson operations on their method and path.
	Description *service.Description

	// Fixtures maps operation names to their stub sequences.
	Fixtures map[string][]Stub

	Logger hclog.Logger
}

// Server is the fixture-driven double for one described service.
type Server struct {
	desc   *service.Description
	log    hclog.Logger
	router *mux.Router

	mu     sync.Mutex
	queues map[string]*stubQueue
	hits   map[string]int
}

// New validates the fixtures against the description and builds the
// routing table.
func New(cfg Config) (*Server, error) {
	if cfg.Description == nil {
		return nil, fmt.Errorf("mock service requires a description")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	s := &Server{
		desc:   cfg.Description,
		log:    logger.Named("mockservice"),
		queues: map[string]*stubQueue{},
		hits:   map[string]int{},
	}

	var errs *multierror.Error
	for name, stubs := range cfg.Fixtures {
		opName, ok := cfg.Description.ResolveOperationName(name)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("fixture %q references an unknown operation", name))
			continue
		}
		s.queues[opName] = &stubQueue{stubs: stubs}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}

	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the HTTP handler, ready for httptest or a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hits reports how many requests an operation has served.
func (s *Server) Hits(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[operation]
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	if s.desc.Protocol == service.ProtocolRESTJSON {
		for name, op := range s.desc.Operations {
			path := op.HTTPPath
			if path == "" {
				path = "/"
			}
			method := op.HTTPMethod
			if method == "" {
				method = http.MethodPost
			}
			opName := name
			r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
				s.serve(w, opName)
			}).Methods(method)
		}
	} else {
		r.HandleFunc("/", s.handleTarget).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.writeUnknownOperation(w, req.Method+" "+req.URL.Path)
	})
	return r
}

// handleTarget dispatches awsjson requests on the target header.
func (s *Server) handleTarget(w http.ResponseWriter, req *http.Request) {
	target := req.Header.Get(protocol.TargetHeader)
	name := target
	if i := strings.LastIndex(target, "."); i >= 0 {
		name = target[i+1:]
	}
	opName, ok := s.desc.ResolveOperationName(name)
	if !ok {
		s.writeUnknownOperation(w, target)
		return
	}
	s.serve(w, opName)
}

func (s *Server) serve(w http.ResponseWriter, operation string) {
	s.mu.Lock()
	s.hits[operation]++
	q := s.queues[operation]
	var stub Stub
	ok := true
	if q != nil {
		stub, ok = q.next()
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("fixture exhausted", "operation", operation)
		s.writeJSON(w, http.StatusInternalServerError,
			`{"__type":"FixtureExhausted","message":"no stubs left for `+operation+`"}`)
		return
	}

	status := stub.Status
	if status == 0 {
		status = http.StatusOK
	}
	body := stub.Body
	if body == "" {
		body = "{}"
	}

	s.log.Debug("serving stubbed response", "operation", operation, "status", status)
	for k, v := range stub.Headers {
		w.Header().Set(k, v)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeUnknownOperation(w http.ResponseWriter, requested string) {
	s.log.Warn("unknown operation requested", "requested", requested)
	s.writeJSON(w, http.StatusBadRequest,
		`{"__type":"UnknownOperationException","message":"unknown operation: `+requested+`"}`)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body string) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

// stubQueue serves an operation's stubs in order. Callers hold the
// server's lock.
type stubQueue struct {
	stubs  []Stub
	index  int
	served int
}

func (q *stubQueue) next() (Stub, bool) {
	if q.index >= len(q.stubs) {
		return Stub{}, false
	}
	st := q.stubs[q.index]
	q.served++

	limit := st.Repeat
	if limit == 0 {
		if q.index == len(q.stubs)-1 {
			return st, true
		}
		limit = 1
	}
	if q.served >= limit {
		q.index++
		q.served = 0
	}
	return st, true
}
