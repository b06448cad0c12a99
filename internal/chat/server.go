package chat

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/metrics"
	"github.com/iq-workshop/builder/internal/middleware/ratelimit"
	"github.com/iq-workshop/builder/internal/middleware/security"
	"github.com/iq-workshop/builder/pkg/logger"
)

// SessionFactory builds a fresh conversation for each websocket client.
type SessionFactory func() *Session

// Server is the --serve mode of the chat step: the same agent loop behind
// a websocket endpoint instead of a terminal.
type Server struct {
	app         *fiber.App
	newSession  SessionFactory
	rateLimiter *ratelimit.RateLimiter
}

type ServerConfig struct {
	AllowedOrigins       string
	MaxRequestsPerMinute int
}

func NewServer(factory SessionFactory, cfg ServerConfig) *Server {
	if cfg.AllowedOrigins == "" {
		cfg.AllowedOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          120 * time.Second,
		DisableStartupMessage: true,
	})

	rl := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.MaxRequestsPerMinute,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(rl.Middleware())

	s := &Server{
		app:         app,
		newSession:  factory,
		rateLimiter: rl,
	}

	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(s.handleChat))

	return s
}

func (s *Server) Listen(addr string) error {
	logger.Info("Chat server starting", zap.String("address", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.rateLimiter.Stop()
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleChat(c *websocket.Conn) {
	session := s.newSession()
	logger.Info("WebSocket chat connected", zap.String("session_id", session.ID()))

	defer func() {
		c.Close()
		logger.Info("WebSocket chat closed", zap.String("session_id", session.ID()))
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}

		if msg.Type != "chat" || msg.Content == "" {
			continue
		}

		answer, err := session.Ask(context.Background(), msg.Content)
		if err != nil {
			logger.Error("Chat turn failed", zap.Error(err))
			c.WriteJSON(fiber.Map{"type": "error", "error": err.Error()})
			continue
		}

		c.WriteJSON(fiber.Map{
			"type":       "answer",
			"session_id": session.ID(),
			"content":    answer,
		})
	}
}
