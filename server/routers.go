package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/database"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

var identityKey = "id"

// ErrEmptySecret auth is on but no jwt secret is configured
var ErrEmptySecret = errors.New("empty jwt secret")

type login struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// User struct
type User struct {
	UserName string
}

// Server live ingest of one QR login flow
type Server struct {
	options libs.Options
	session *core.Session
	hub     *Hub
	signal  *core.FlagSignal

	mu      sync.RWMutex
	verdict *libs.Verdict
}

// NewServer create a server, replays go out through the websocket hub
func NewServer(options libs.Options) *Server {
	s := &Server{
		options: options,
		session: core.NewSession(options),
		signal:  &core.FlagSignal{},
	}
	s.hub = NewHub(s.session)
	s.session.SetChannel(s.hub)
	return s
}

// Session capture session behind the api
func (s *Server) Session() *core.Session {
	return s.session
}

// Hub replay hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Verdict verdict of the finished detection pass
func (s *Server) Verdict() (libs.Verdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.verdict == nil {
		return libs.Verdict{}, false
	}
	return *s.verdict, true
}

func (s *Server) setVerdict(v libs.Verdict) {
	s.mu.Lock()
	s.verdict = &v
	s.mu.Unlock()
}

// Watch wait for the done signal, either POST /api/done or the done flag file
func (s *Server) Watch(ctx context.Context) {
	signal := anySignal{s.signal, core.FileSignal{Path: s.options.DoneFlag}}
	watcher := core.NewWatcher(s.options, s.session, signal)
	watcher.OnVerdict = s.setVerdict
	if _, err := watcher.Run(ctx); err != nil {
		utils.ErrorF("Watcher stopped: %v", err)
	}
}

type anySignal []core.CompletionSignal

func (a anySignal) Done() bool {
	for _, s := range a {
		if s.Done() {
			return true
		}
	}
	return false
}

// InitRouter build every route, auth setup errors stop the server
func (s *Server) InitRouter() (*gin.Engine, error) {
	options := s.options
	r := gin.New()
	r.Use(gin.Recovery())
	if options.Debug {
		r.Use(gin.LoggerWithWriter(utils.Logger().Writer()))
	}

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if options.Server.Cors == "" || options.Server.Cors == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{options.Server.Cors}
	}
	r.Use(cors.New(corsConfig))

	// generated reports
	reportFolder := utils.NormalizePath(core.ReportFolder(options))
	utils.MakeDir(reportFolder)
	r.Use(static.Serve("/reports", static.LocalFile(reportFolder, false)))

	api := r.Group("/api")
	if !options.Server.NoAuth {
		authMiddleware, err := s.authMiddleware()
		if err != nil {
			utils.ErrorF("JWT Error: %v", err)
			return nil, fmt.Errorf("init auth: %w", err)
		}
		r.POST("/auth/login", authMiddleware.LoginHandler)
		api.GET("/refresh_token", authMiddleware.RefreshHandler)
		api.Use(authMiddleware.MiddlewareFunc())
	}
	{
		api.GET("/ping", Ping)
		api.POST("/request", s.ReceiveRequest)
		api.POST("/response", s.ReceiveResponse)
		api.POST("/done", s.Done)
		api.GET("/verdict", s.GetVerdict)
		api.GET("/verdicts", ListVerdicts)
		api.GET("/verdicts/:sid", GetStoredVerdict)
		api.GET("/ws", s.hub.Handle)
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "404", "message": "Page not found"})
	})
	return r, nil
}

func (s *Server) authMiddleware() (*jwt.GinJWTMiddleware, error) {
	options := s.options
	if options.Server.JWTSecret == "" {
		return nil, ErrEmptySecret
	}
	return jwt.New(&jwt.GinJWTMiddleware{
		Realm:       "qrlchecker server",
		Key:         []byte(options.Server.JWTSecret),
		Timeout:     time.Hour * 360,
		MaxRefresh:  time.Hour * 720,
		IdentityKey: identityKey,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if v, ok := data.(*User); ok {
				return jwt.MapClaims{
					identityKey: v.UserName,
				}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(c *gin.Context) interface{} {
			claims := jwt.ExtractClaims(c)
			username, ok := claims[identityKey].(string)
			if !ok {
				return nil
			}
			return &User{
				UserName: username,
			}
		},
		Authenticator: func(c *gin.Context) (interface{}, error) {
			var loginVals login
			if err := c.ShouldBind(&loginVals); err != nil {
				return "", jwt.ErrMissingLoginValues
			}
			username := loginVals.Username
			password := loginVals.Password
			if database.ValidUser(username, password) ||
				(username == options.Server.Username && password == options.Server.Password && password != "") {
				return &User{
					UserName: username,
				}, nil
			}
			return nil, jwt.ErrFailedAuthentication
		},
		Authorizator: func(data interface{}, c *gin.Context) bool {
			_, ok := data.(*User)
			return ok
		},
		Unauthorized: func(c *gin.Context, code int, message string) {
			c.JSON(code, gin.H{
				"status":  code,
				"message": message,
			})
		},
		TokenLookup:   "header: Authorization, query: token, cookie: jwt",
		TokenHeadName: "QRLChecker",
		TimeFunc:      time.Now,
	})
}

// Run start the watcher and serve until ctx is done
func (s *Server) Run(ctx context.Context) error {
	router, err := s.InitRouter()
	if err != nil {
		return err
	}
	go s.Watch(ctx)
	srv := &http.Server{
		Addr:    s.options.Server.Bind,
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	utils.InforF("Start API server at http://%v", s.options.Server.Bind)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
