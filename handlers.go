package main

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vortamiko/internal/scorekeeper"
)

// keyRequest is the POST /api/key body.
type keyRequest struct {
	Letter string `json:"letter" binding:"required,len=1"`
}

// guessBody is the POST /api/guess body. Word is optional; when present it
// replaces the buffer before submitting, for UIs that post whole words.
type guessBody struct {
	Word string `json:"word" binding:"omitempty,len=5,alpha"`
}

func (s *server) stateHandler(c *gin.Context) {
	sess := s.sessionFor(c)
	c.JSON(http.StatusOK, sess.controller.Snapshot())
}

func (s *server) keyHandler(c *gin.Context) {
	sess := s.sessionFor(c)

	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "letter must be a single character"})
		return
	}
	for _, r := range req.Letter {
		sess.controller.Press(r)
	}
	c.JSON(http.StatusOK, sess.controller.Snapshot())
}

func (s *server) backspaceHandler(c *gin.Context) {
	sess := s.sessionFor(c)
	sess.controller.Backspace()
	c.JSON(http.StatusOK, sess.controller.Snapshot())
}

func (s *server) guessHandler(c *gin.Context) {
	sess := s.sessionFor(c)

	// An empty body submits the buffered guess as-is.
	var body guessBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "word must be 5 letters"})
		return
	}
	if body.Word != "" {
		sess.controller.TypeWord(body.Word)
	}
	sess.controller.Submit(c.Request.Context())
	c.JSON(http.StatusOK, sess.controller.Snapshot())
}

func (s *server) newGameHandler(c *gin.Context) {
	sess := s.sessionFor(c)
	sess.controller.NewGame(c.Request.Context())
	c.JSON(http.StatusOK, sess.controller.Snapshot())
}

func (s *server) historyHandler(c *gin.Context) {
	sess := s.sessionFor(c)
	if sess.api == nil {
		c.JSON(http.StatusOK, gin.H{"error": "Offline mode keeps no history."})
		return
	}

	history, err := sess.api.History(c.Request.Context())
	if err != nil {
		s.renderAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *server) profileHandler(c *gin.Context) {
	sess := s.sessionFor(c)
	if sess.api == nil || !s.app.auth.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"error": ErrorNotLoggedIn})
		return
	}

	profile, err := sess.api.Profile(c.Request.Context())
	if err != nil {
		s.renderAPIError(c, err)
		return
	}
	if profile == nil {
		c.JSON(http.StatusOK, gin.H{"error": ErrorNoProfile})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// renderAPIError surfaces a normalized gateway error to the browser with
// its user-facing message and original status where one exists.
func (s *server) renderAPIError(c *gin.Context, err error) {
	if apiErr, ok := scorekeeper.AsAPIError(err); ok {
		status := apiErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": apiErr.UserMessage})
		return
	}
	logWarn("Unnormalized gateway error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong."})
}

func (s *server) healthHandler(c *gin.Context) {
	uptime := time.Since(s.startTime)

	s.sessionMutex.RLock()
	active := len(s.sessions)
	s.sessionMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[s.cfg.Production],
		"mode":            map[bool]string{true: "standalone", false: "online"}[s.cfg.Standalone],
		"active_sessions": active,
		"uptime":          formatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
