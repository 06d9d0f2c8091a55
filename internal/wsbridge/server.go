package wsbridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"moff.io/wallet-bridge/internal/sdkbridge"
	"moff.io/wallet-bridge/pkg/errors"
	"moff.io/wallet-bridge/pkg/log"
	"moff.io/wallet-bridge/pkg/log/middleware"
)

var ErrNoHost = errors.New("no wallet host attached")

// Server is a sdkbridge.Bridge whose host is a browser page connected over a
// websocket at /bridge. One host is attached at a time; a newly connecting
// host replaces the previous one.
type Server struct {
	listen       string
	queryTimeout time.Duration
	engine       *gin.Engine
	httpServer   *http.Server
	upgrader     websocket.Upgrader

	resolver sdkbridge.Resolver
	done     chan struct{}
	stopOnce sync.Once

	// callbacks waiting for delivery; unbounded so the read loop never stalls
	callbacksMu sync.Mutex
	callbacks   *linkedlistqueue.Queue
	wake        chan struct{}

	writeMu  sync.Mutex
	mu       sync.Mutex
	conn     *websocket.Conn
	attachCh chan struct{}
	attached atomic.Bool

	queriesMu sync.Mutex
	queries   map[string]chan string
}

// NewServer builds the bridge server. hostDir, when non-empty, is served under /host/.
func NewServer(listen, hostDir string, queryTimeout time.Duration) *Server {
	s := &Server{
		listen:       listen,
		queryTimeout: queryTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// the host page may be served from anywhere, e.g. a game build on another port
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		callbacks: linkedlistqueue.New(),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		attachCh:  make(chan struct{}),
		queries:   make(map[string]chan string),
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.RecoveredHTTPLog())
	engine.GET("/bridge", s.handleBridge)
	engine.GET("/status", s.handleStatus)
	if hostDir != "" {
		engine.Static("/host", hostDir)
	}
	s.engine = engine
	go s.deliverCallbacks()
	return s
}

// SetResolver routes host callbacks to r. It must be set before a host attaches.
func (s *Server) SetResolver(r sdkbridge.Resolver) {
	s.resolver = r
}

// Handler exposes the HTTP routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP in the background until Stop is called.
func (s *Server) Start(ctx context.Context) {
	s.httpServer = &http.Server{Addr: s.listen, Handler: s.engine}
	go func() {
		log.Infof("wallet bridge listening on %s", s.listen)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(errors.WrapAndReport(err, "serve wallet bridge"))
		}
	}()
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				log.Warnf("shutdown wallet bridge: %v", err)
			}
		}
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
}

// WaitAttached blocks until a host is attached or ctx is done.
func (s *Server) WaitAttached(ctx context.Context) error {
	for {
		s.mu.Lock()
		ch := s.attachCh
		s.mu.Unlock()
		if s.attached.Load() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for wallet host")
		case <-s.done:
			return errors.New("wallet bridge stopped")
		}
	}
}

func (s *Server) Available() bool {
	return s.attached.Load()
}

func (s *Server) Init(requestID, configJSON, network, customRPCURL string) error {
	return s.send(&request{ID: requestID, Method: methodInit, Params: initParams{
		Config:       configJSON,
		Network:      network,
		CustomRPCURL: optional(customRPCURL),
	}})
}

func (s *Server) Connect(requestID string) error {
	return s.send(&request{ID: requestID, Method: methodConnect})
}

func (s *Server) GetSubAccount(requestID string) error {
	return s.send(&request{ID: requestID, Method: methodGetSubAccount})
}

func (s *Server) SendTransaction(requestID, callsJSON, chainIDOverride string) error {
	return s.send(&request{ID: requestID, Method: methodSendTransaction, Params: sendParams{
		Calls:           callsJSON,
		ChainIDOverride: optional(chainIDOverride),
	}})
}

// CurrentNetwork asks the host and waits up to the query timeout for the answer.
func (s *Server) CurrentNetwork() (string, bool) {
	id := uuid.NewString()
	answer := make(chan string, 1)
	s.queriesMu.Lock()
	s.queries[id] = answer
	s.queriesMu.Unlock()
	defer func() {
		s.queriesMu.Lock()
		delete(s.queries, id)
		s.queriesMu.Unlock()
	}()

	if err := s.send(&request{ID: id, Method: methodCurrentNetwork}); err != nil {
		log.Warnf("query current network: %v", err)
		return "", false
	}
	timer := time.NewTimer(s.queryTimeout)
	defer timer.Stop()
	select {
	case payload := <-answer:
		return payload, payload != ""
	case <-timer.C:
		log.Warnf("current network query %s timed out after %v", id, s.queryTimeout)
		return "", false
	case <-s.done:
		return "", false
	}
}

func (s *Server) send(req *request) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNoHost
	}
	payload := req.Marshal()
	log.Debugf("wallet bridge - send:%s", payload)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrapf(err, "write %s request", req.Method)
	}
	return nil
}

func (s *Server) handleStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"attached": s.attached.Load()})
}

func (s *Server) handleBridge(ctx *gin.Context) {
	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warnf("upgrade wallet host connection: %v", err)
		return
	}
	s.attach(conn)
	defer s.detach(conn)
	s.readLoop(conn)
}

func (s *Server) attach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		log.Warn("wallet host replaced by a new connection")
		s.conn.Close()
	}
	if !s.attached.Load() {
		close(s.attachCh)
	}
	s.conn = conn
	s.attached.Store(true)
	log.Infof("wallet host attached from %s", conn.RemoteAddr())
}

func (s *Server) detach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn.Close()
	if s.conn != conn {
		return
	}
	s.conn = nil
	s.attached.Store(false)
	s.attachCh = make(chan struct{})
	log.Warn("wallet host detached")
}

func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("wallet bridge - read: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			log.Warnf("wallet bridge - unsupported message type %d", msgType)
			continue
		}
		log.Debugf("wallet bridge - receive:%s", data)
		resp, ok := parseResponse(data)
		if !ok {
			log.Warnf("wallet bridge - malformed host message %s", data)
			continue
		}
		if s.answerQuery(resp) {
			continue
		}
		s.enqueue(resp)
	}
}

func (s *Server) enqueue(resp *response) {
	s.callbacksMu.Lock()
	s.callbacks.Enqueue(resp)
	s.callbacksMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Server) dequeue() (*response, bool) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	v, ok := s.callbacks.Dequeue()
	if !ok {
		return nil, false
	}
	return v.(*response), true
}

func (s *Server) answerQuery(resp *response) bool {
	s.queriesMu.Lock()
	defer s.queriesMu.Unlock()
	answer, ok := s.queries[resp.ID]
	if ok {
		select {
		case answer <- resp.Payload:
		default:
		}
	}
	return ok
}

// deliverCallbacks resolves host callbacks one at a time in arrival order, off
// the read loop so listeners may issue synchronous queries.
func (s *Server) deliverCallbacks() {
	for {
		for {
			resp, ok := s.dequeue()
			if !ok {
				break
			}
			if s.resolver == nil {
				log.Warnf("no resolver for callback %s", resp.ID)
				continue
			}
			s.resolver.Resolve(resp.ID, resp.Payload)
		}
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
