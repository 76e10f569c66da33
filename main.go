package main

import (
	"context"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"

	"github.com/reveriechat/reverie/adapters/hasher"
	"github.com/reveriechat/reverie/adapters/http"
	"github.com/reveriechat/reverie/adapters/llm"
	"github.com/reveriechat/reverie/adapters/message_broker"
	"github.com/reveriechat/reverie/adapters/store"
	"github.com/reveriechat/reverie/adapters/tts"
	"github.com/reveriechat/reverie/adapters/websocket"
	"github.com/reveriechat/reverie/usecase"
)

func main() {
	gotenv.Load()
	ctx := context.Background()

	geminiLlm, err := llm.NewGeminiClient(ctx)
	if err != nil {
		log.Fatalf("gemini client: %v", err)
	}
	if err := geminiLlm.Probe(ctx); err != nil {
		log.Fatalf("gemini key check: %v", err)
	}

	googleTTS, err := tts.NewGoogleTTS(ctx)
	if err != nil {
		log.Fatalf("tts client: %v", err)
	}

	dsn := os.Getenv("SQLITE_DSN")
	if dsn == "" {
		dsn = "reverie.db"
	}
	sessionStore, err := store.NewSQLiteStore(dsn, hasher.NewSha256())
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer sessionStore.Close()

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	manager := usecase.NewSessionManager(geminiLlm, broker, sessionStore)
	extractor := usecase.NewExtractor()

	server := websocket.NewServer(broker)
	go server.RunWebsocketHub()

	chatHandler := http.NewChatHandler(manager, extractor, geminiLlm, googleTTS, sessionStore)

	e := echo.New()

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20))) // 20 requests per minute

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // In production, specify exact origins
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
			"Content-Length",
		},
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Request size limit
	e.Use(middleware.BodyLimit("1MB"))

	// JWT auth for WebSocket (same as HTTP)
	wsGroup := e.Group("/ws")
	wsGroup.Use(chatHandler.JWTMiddleware)
	wsGroup.GET("", server.Handler)

	// HTTP API routes
	api := e.Group("/api/v1")

	// Public endpoints (no auth required)
	api.GET("/health", chatHandler.HealthCheck)
	api.POST("/auth/token", chatHandler.GenerateJWT)

	// Chat endpoints (JWT auth required)
	chat := api.Group("")
	chat.Use(chatHandler.JWTMiddleware)

	chat.POST("/sessions", chatHandler.CreateSession)
	chat.GET("/sessions/:id", chatHandler.GetSession)
	chat.POST("/sessions/:id/messages", chatHandler.SubmitMessage)
	chat.POST("/sessions/:id/input-mode", chatHandler.SetInputMode)
	chat.POST("/sessions/:id/instructions", chatHandler.UpdateInstructions)
	chat.POST("/sessions/:id/reset", chatHandler.ResetSession)
	chat.GET("/sessions/:id/export", chatHandler.ExportSession)
	chat.POST("/sessions/import", chatHandler.ImportSession)

	chat.GET("/exports", chatHandler.ListExports)
	chat.GET("/exports/:id", chatHandler.GetExport)
	chat.DELETE("/exports/:id", chatHandler.DeleteExport)

	chat.POST("/extract", chatHandler.Extract)
	chat.GET("/voices", chatHandler.Voices)
	chat.POST("/tts", chatHandler.Synthesize)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Starting server on :" + port)
	log.Fatal(e.Start(":" + port))
}
