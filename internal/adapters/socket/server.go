package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// AppQueries provides the app operations the daemon exposes.
// Thread safety is the implementor's responsibility.
type AppQueries interface {
	Search(ctx context.Context, query string, limit int) (SearchResult, error)
	Health() HealthResult
	Files(glob, name string) (FilesResult, error)
	Reindex(ctx context.Context) (ReindexResult, error)
}

// requestTimeout bounds a single search or reindex on the server side.
const requestTimeout = 2 * time.Minute

// Server is the daemon that listens on a Unix socket and serves requests.
type Server struct {
	queries  AppQueries
	listener net.Listener
	sockPath string
	logger   *slog.Logger

	ctx    context.Context // canceled by Stop; parents request contexts
	cancel context.CancelFunc

	done         chan struct{}
	shutdownCh   chan struct{} // closed when a remote shutdown request is received
	shutdownOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewServer creates a daemon server backed by queries.
func NewServer(queries AppQueries, sockPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		queries:    queries,
		sockPath:   sockPath,
		logger:     logger.With("component", "socket"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Start begins listening on the Unix socket. It handles stale sockets by
// attempting a connection first. If the connection fails, the stale socket
// is removed before binding.
func (s *Server) Start() error {
	if _, err := os.Stat(s.sockPath); err == nil {
		conn, err := net.DialTimeout("unix", s.sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("daemon already running at %s", s.sockPath)
		}
		os.Remove(s.sockPath)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("listening", "socket", s.sockPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener, waits for open connections and removes the
// socket file. Idempotent.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.sockPath)
	})
	return nil
}

// ShutdownCh returns a channel that is closed when a remote shutdown request
// is received. The daemon's main goroutine should select on this alongside
// OS signals so the process actually exits after a remote stop.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.sockPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// unblock the scanner on Stop
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-connDone:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max message

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, Response{Error: "invalid request JSON"})
			continue
		}

		start := time.Now()
		resp := s.handleRequest(req)
		s.logger.Debug("request", "id", req.ID, "method", req.Method,
			"elapsed", time.Since(start), "error", resp.Error)
		s.writeResponse(conn, resp)

		if req.Method == MethodShutdown {
			s.shutdownOnce.Do(func() { close(s.shutdownCh) })
			return
		}
	}
}

func (s *Server) handleRequest(req Request) Response {
	switch req.Method {
	case MethodSearch:
		return s.handleSearch(req)
	case MethodHealth:
		return result(req.ID, s.queries.Health())
	case MethodFiles:
		return s.handleFiles(req)
	case MethodReindex:
		return s.handleReindex(req)
	case MethodShutdown:
		return result(req.ID, struct{}{})
	default:
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

func (s *Server) handleSearch(req Request) Response {
	var params SearchParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid search params"}
	}
	if params.Query == "" {
		return Response{ID: req.ID, Error: "empty query"}
	}

	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	defer cancel()
	res, err := s.queries.Search(ctx, params.Query, params.Limit)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return result(req.ID, res)
}

func (s *Server) handleFiles(req Request) Response {
	var params FilesParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid files params"}
	}
	res, err := s.queries.Files(params.Glob, params.Name)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return result(req.ID, res)
}

func (s *Server) handleReindex(req Request) Response {
	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	defer cancel()
	res, err := s.queries.Reindex(ctx)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return result(req.ID, res)
}

// decodeParams tolerates absent params.
func decodeParams(req Request, v interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params, v)
}

func result(id string, v interface{}) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{ID: id, Error: fmt.Sprintf("marshal result: %v", err)}
	}
	return Response{ID: id, Result: data}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.logger.Debug("write response", "id", resp.ID, "err", err)
	}
}
