package web

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/hobeone/epnamer/config"
	"github.com/hobeone/epnamer/db"
	"github.com/hobeone/epnamer/indexers"
	"github.com/hobeone/epnamer/renamer"
	"github.com/hobeone/epnamer/storage"
)

// planTTL is how long a generated rename map waits for confirmation.
const planTTL = time.Hour

// plan is a generated RenameMap waiting to be executed.
type plan struct {
	rm      *renamer.RenameMap
	created time.Time
}

// Server holds what the handlers share.  Generated plans are kept in memory
// by id until they are executed or expire.
type Server struct {
	cfg     *config.Config
	dbh     *db.Handle
	indexer indexers.Indexer
	broker  *storage.Broker

	mu    sync.Mutex
	plans map[string]*plan
}

// NewServer returns a Server using the given collaborators.
func NewServer(cfg *config.Config, dbh *db.Handle, idx indexers.Indexer, broker *storage.Broker) *Server {
	return &Server{
		cfg:     cfg,
		dbh:     dbh,
		indexer: idx,
		broker:  broker,
		plans:   map[string]*plan{},
	}
}

func (p *plan) expired() bool {
	return time.Since(p.created) > planTTL
}

func (s *Server) addPlan(id string, rm *renamer.RenameMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.plans {
		if p.expired() {
			glog.Infof("Dropping expired rename plan %s", k)
			delete(s.plans, k)
		}
	}
	s.plans[id] = &plan{rm: rm, created: time.Now()}
}

// lookupPlan returns the plan for id unless it has expired.  Callers hold mu.
func (s *Server) lookupPlan(id string) (*plan, bool) {
	p, ok := s.plans[id]
	if !ok {
		return nil, false
	}
	if p.expired() {
		glog.Infof("Dropping expired rename plan %s", id)
		delete(s.plans, id)
		return nil, false
	}
	return p, true
}

func (s *Server) getPlan(id string) (*plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupPlan(id)
}

// takePlan removes and returns the plan so it is executed at most once.
func (s *Server) takePlan(id string) (*plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookupPlan(id)
	delete(s.plans, id)
	return p, ok
}

// GenericResult is the body of responses without data.
type GenericResult struct {
	Message string `json:"message"`
	Result  string `json:"result"`
}

func genError(c *gin.Context, status int, msg string) {
	c.JSON(status, GenericResult{
		Message: msg,
		Result:  "failure",
	})
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"data":    data,
		"message": "",
		"result":  "success",
	})
}

// Ping reports the server is alive.
func Ping(c *gin.Context) {
	c.JSON(200, gin.H{
		"data":    gin.H{"pid": os.Getpid()},
		"message": "Pong",
		"result":  "success",
	})
}

// ServerHandler makes the Server available to other handlers
func ServerHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("server", s)
		c.Next()
	}
}

// Logger logs every request through glog.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		// before request
		c.Next()

		// after request
		end := time.Now()
		latency := end.Sub(t)

		glog.Infof("[GIN] |%3d| %12v | %s |%-7s %s\n%s",
			c.Writer.Status(),
			latency,
			c.ClientIP(),
			c.Request.Method,
			c.Request.URL.RequestURI(),
			c.Errors.String(),
		)
	}
}

func createServer(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(Logger())
	r.Use(gin.Recovery())

	r.Use(ServerHandler(s))
	r.GET("/ping", Ping)

	api := r.Group("/api/1")
	{
		api.POST("/generate", Generate)
		api.POST("/rename", Rename)
		api.GET("/history", History)
		api.GET("/history/:id", HistoryRun)
		api.POST("/history/:id/undo", UndoRun)
	}
	return r
}

// StartServer serves the API on the configured address until it fails.
func StartServer(s *Server) error {
	r := createServer(s)
	glog.Infof("Listening on %s", s.cfg.WebServer.ListenAddress)
	return http.ListenAndServe(s.cfg.WebServer.ListenAddress, r)
}
