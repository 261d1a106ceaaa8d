package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendMailRequest is the payload the gateway's mailer posts.
type SendMailRequest struct {
	To       string `json:"to" binding:"required"`
	Subject  string `json:"subject" binding:"required"`
	TextBody string `json:"text_body" binding:"required"`
	HTMLBody string `json:"html_body"`
	From     string `json:"from"`
}

// SendMailResponse mirrors what a real relay answers.
type SendMailResponse struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HealthResponse is the relay health payload.
type HealthResponse struct {
	Status     string    `json:"status"`
	RelayID    string    `json:"relay_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
}

// MailSink simulates an SMTP relay's HTTP front end: configurable accept
// rate and latency, for exercising the notifier's retry and failover paths.
type MailSink struct {
	acceptRate float64
	minDelay   time.Duration
	maxDelay   time.Duration
	relayID    string
	rng        *rand.Rand
}

func NewMailSink(acceptRate float64, minDelay, maxDelay time.Duration) *MailSink {
	return &MailSink{
		acceptRate: acceptRate,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		relayID:    "MAILSINK_" + uuid.New().String()[:8],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MailSink) simulateDelivery(req *SendMailRequest) *SendMailResponse {
	time.Sleep(m.randomDelay())

	if m.shouldAccept() {
		id := uuid.New().String()
		log.Info().
			Str("to", req.To).
			Str("subject", req.Subject).
			Str("id", id).
			Msg("mail accepted")
		return &SendMailResponse{Accepted: true, ID: id}
	}

	log.Warn().
		Str("to", req.To).
		Str("subject", req.Subject).
		Msg("mail declined")
	return &SendMailResponse{Accepted: false, Error: "mailbox temporarily unavailable"}
}

func (m *MailSink) randomDelay() time.Duration {
	if m.maxDelay <= m.minDelay {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(m.maxDelay-m.minDelay)))
}

func (m *MailSink) shouldAccept() bool {
	return m.rng.Float64() < m.acceptRate
}

type Handler struct {
	sink *MailSink
}

func NewHandler(sink *MailSink) *Handler {
	return &Handler{sink: sink}
}

func (h *Handler) SendMail(c *gin.Context) {
	var req SendMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	response := h.sink.simulateDelivery(&req)

	statusCode := http.StatusOK
	if !response.Accepted {
		statusCode = http.StatusAccepted // accepted the request, declined the mail
	}
	c.JSON(statusCode, response)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		RelayID:    h.sink.relayID,
		Timestamp:  time.Now(),
		AcceptRate: h.sink.acceptRate,
	})
}

// UpdateConfig changes the accept rate at runtime, handy for drills.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.AcceptRate != nil && *config.AcceptRate >= 0 && *config.AcceptRate <= 1.0 {
		h.sink.acceptRate = *config.AcceptRate
		log.Info().Float64("rate", *config.AcceptRate).Msg("updated accept rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Configuration updated",
		"accept_rate": h.sink.acceptRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/mail/send", handler.SendMail)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)
	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	acceptRate := getEnvFloat("ACCEPT_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting mail sink")

	sink := NewMailSink(acceptRate, minDelay, maxDelay)
	handler := NewHandler(sink)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
