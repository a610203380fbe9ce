// Package httpapi exposes the Nayru engine over HTTP: speak/stop/skip/
// pause/resume/status plus the ambient /healthz and /metrics endpoints
// and the preview_split helper described alongside the engine's design.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hammamikhairi/nayru/internal/domain"
	"github.com/hammamikhairi/nayru/internal/engine"
	"github.com/hammamikhairi/nayru/internal/logger"
	"github.com/hammamikhairi/nayru/internal/textproc"
)

// requestTimeout bounds how long a speak() call is given to segment text
// and hand it to the Synthesizer before the HTTP handler gives up and
// reports an error; actual synthesis/playback continues in the background.
const requestTimeout = 5 * time.Second

// Server wraps a gin.Engine wired to a Nayru engine.Engine.
type Server struct {
	router *gin.Engine
	eng    *engine.Engine
	log    *logger.Logger
}

// New builds the HTTP API. CORS is permissive by default, matching a
// local-only voice server meant to be called from any origin on the
// operator's machine.
func New(eng *engine.Engine, log *logger.Logger) *Server {
	if log != nil {
		log = log.With("httpapi")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginLogger(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	r.Use(cors.New(corsCfg))

	s := &Server{router: r, eng: eng, log: log}
	s.routes()
	return s
}

// Router exposes the underlying gin.Engine, e.g. for httptest.
func (s *Server) Router() http.Handler { return s.router }

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	if s.log != nil {
		s.log.Info("listening on %s", addr)
	}
	return s.router.Run(addr)
}

func (s *Server) routes() {
	s.router.POST("/speak", s.handleSpeak)
	s.router.POST("/stop", s.handleStop)
	s.router.POST("/skip", s.handleSkip)
	s.router.POST("/pause", s.handlePause)
	s.router.POST("/resume", s.handleResume)
	s.router.GET("/status", s.handleStatus)
	s.router.POST("/set_config", s.handleSetConfig)
	s.router.GET("/get_config", s.handleGetConfig)
	s.router.POST("/preview_split", s.handlePreviewSplit)
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type speakRequest struct {
	Text  string `json:"text" binding:"required"`
	Voice string `json:"voice"`
}

func (s *Server) handleSpeak(c *gin.Context) {
	var req speakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Voice != "" {
		cfg := s.eng.GetConfig()
		if req.Voice != cfg.Voice {
			cfg.Voice = req.Voice
			if err := s.eng.SetConfig(cfg); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
				return
			}
		}
	}

	ctx := c.Request.Context()
	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
	}
	defer cancel()

	st, err := s.eng.Speak(ctx, req.Text)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "queued_chunks": st.Total})
}

func (s *Server) handleStop(c *gin.Context) {
	s.eng.Stop()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSkip(c *gin.Context) {
	s.eng.Skip()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handlePause(c *gin.Context) {
	s.eng.Pause()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleResume(c *gin.Context) {
	s.eng.Resume()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Status())
}

type configPayload struct {
	KokoroURL string  `json:"kokoro_url"`
	Voice     string  `json:"voice"`
	Speed     float32 `json:"speed"`
}

// configPatch distinguishes absent fields from zero values, so a partial
// body like {"speed": 1.2} merges into the live config instead of wiping
// the url and voice.
type configPatch struct {
	KokoroURL *string  `json:"kokoro_url"`
	Voice     *string  `json:"voice"`
	Speed     *float32 `json:"speed"`
}

func (s *Server) handleSetConfig(c *gin.Context) {
	var patch configPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := s.eng.GetConfig()
	if patch.KokoroURL != nil {
		cfg.KokoroURL = *patch.KokoroURL
	}
	if patch.Voice != nil {
		cfg.Voice = *patch.Voice
	}
	if patch.Speed != nil {
		cfg.Speed = *patch.Speed
	}

	if err := s.eng.SetConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	cfg := s.eng.GetConfig()
	c.JSON(http.StatusOK, configPayload{KokoroURL: cfg.KokoroURL, Voice: cfg.Voice, Speed: cfg.Speed})
}

type previewSplitRequest struct {
	Text string `json:"text" binding:"required"`
}

// handlePreviewSplit lets a client-side UI preview the server's
// segmentation for some text without actually speaking it. The server's
// split is authoritative; this just exposes it read-only.
func (s *Server) handlePreviewSplit(c *gin.Context) {
	var req previewSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chunks := textproc.SplitChunks(textproc.Clean(req.Text))
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log != nil {
			log.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}
