package http

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/usecase"
	"github.com/reveriechat/reverie/utils/log"
)

const (
	// JWT settings
	JWTSecretKey = "your-super-secret-jwt-key-change-in-production"
	JWTExpiry    = 24 * time.Hour
)

type ChatHandler struct {
	manager     *usecase.SessionManager
	extractor   *usecase.Extractor
	llm         domain.Llm
	synthesizer domain.SpeechSynthesizer
	store       domain.SessionStore
	jwtSecret   []byte
}

type JWTClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// messageView pairs a chat message with its render description so the
// browser never re-derives presentation from raw content.
type messageView struct {
	Message domain.ChatMessage       `json:"message"`
	Render  domain.RenderDescription `json:"render"`
}

type sessionResponse struct {
	SessionID string               `json:"session_id"`
	State     usecase.SessionState `json:"state"`
	Messages  []messageView        `json:"messages"`
}

type createSessionRequest struct {
	Character domain.CharacterProfile   `json:"character"`
	Scenario  domain.ScenarioDefinition `json:"scenario"`
}

type submitMessageRequest struct {
	Text string `json:"text"`
}

type inputModeRequest struct {
	AutoDetect bool   `json:"auto_detect"`
	Type       string `json:"type"`
}

type instructionsRequest struct {
	Instructions string `json:"instructions"`
}

type extractRequest struct {
	Description string `json:"description"`
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

func NewChatHandler(manager *usecase.SessionManager, extractor *usecase.Extractor, llm domain.Llm, synthesizer domain.SpeechSynthesizer, store domain.SessionStore) *ChatHandler {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = JWTSecretKey
	}
	return &ChatHandler{
		manager:     manager,
		extractor:   extractor,
		llm:         llm,
		synthesizer: synthesizer,
		store:       store,
		jwtSecret:   []byte(secret),
	}
}

// GenerateJWT creates a JWT token for authenticated clients
func (h *ChatHandler) GenerateJWT(c echo.Context) error {
	apiKey := c.Request().Header.Get("X-API-Key")
	apiSecret := c.Request().Header.Get("X-API-Secret")

	if apiKey != os.Getenv("API_KEY") || apiSecret != os.Getenv("API_SECRET") || apiKey == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	claims := &JWTClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(JWTExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "reverie",
			Subject:   "chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Failed to sign JWT", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": tokenString,
		"type":  "Bearer",
	})
}

// JWTMiddleware validates the bearer token and stores claims on the context.
func (h *ChatHandler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
			c.Set("user_id", claims.UserID)
			return next(c)
		}

		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
	}
}

// HealthCheck endpoint
func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "reverie",
	})
}

// CreateSession builds a session from a character and scenario and runs the
// opening exchange before responding.
func (h *ChatHandler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	session, err := h.manager.Create(&req.Character, &req.Scenario)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := session.Start(c.Request().Context()); err != nil {
		h.manager.Remove(session.ID())
		log.WithCtx(c.Request().Context()).Error("Failed to start session", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to start session")
	}

	return c.JSON(http.StatusCreated, h.sessionResponse(session))
}

// GetSession returns the current state and transcript of a session.
func (h *ChatHandler) GetSession(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.sessionResponse(session))
}

// SubmitMessage processes one user turn and returns the appended messages.
func (h *ChatHandler) SubmitMessage(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	var req submitMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	appended, err := session.Submit(c.Request().Context(), req.Text)
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, "Message text is required")
	case errors.Is(err, domain.ErrSessionBusy):
		return echo.NewHTTPError(http.StatusConflict, "A response is already being generated")
	case errors.Is(err, domain.ErrSessionNotReady):
		return echo.NewHTTPError(http.StatusConflict, "Session is not ready for input")
	case err != nil:
		log.WithCtx(c.Request().Context()).Error("Submit failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process message")
	}

	h.savePoint(c, session.ID())

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": session.ID(),
		"state":      session.State(),
		"appended":   h.views(session, appended),
	})
}

// SetInputMode toggles auto-detection and the manual message type.
func (h *ChatHandler) SetInputMode(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	var req inputModeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	session.SetAutoDetect(req.AutoDetect)
	if req.Type != "" {
		session.SetManualType(domain.MessageType(req.Type))
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateInstructions applies a mid-session roleplay instruction update.
func (h *ChatHandler) UpdateInstructions(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	var req instructionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if err := session.UpdateInstructions(req.Instructions); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": session.ID(),
		"state":      session.State(),
	})
}

// ResetSession starts the scenario over: history and transcript are
// discarded and the opening exchange is regenerated.
func (h *ChatHandler) ResetSession(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	session.Reset()
	if err := session.Start(c.Request().Context()); err != nil {
		log.WithCtx(c.Request().Context()).Error("Failed to restart session", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to restart session")
	}

	return c.JSON(http.StatusOK, h.sessionResponse(session))
}

// ExportSession snapshots a session and persists it as a save point.
func (h *ChatHandler) ExportSession(c echo.Context) error {
	export, err := h.manager.Save(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, export)
}

// ImportSession revives an exported session under a fresh id.
func (h *ChatHandler) ImportSession(c echo.Context) error {
	var export domain.ChatExport
	if err := c.Bind(&export); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	session, err := h.manager.Import(&export)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, h.sessionResponse(session))
}

// ListExports returns summaries of all persisted save points.
func (h *ChatHandler) ListExports(c echo.Context) error {
	if h.store == nil {
		return c.JSON(http.StatusOK, []domain.ExportSummary{})
	}
	list, err := h.store.ListExports(c.Request().Context())
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Failed to list exports", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list exports")
	}
	if list == nil {
		list = []domain.ExportSummary{}
	}
	return c.JSON(http.StatusOK, list)
}

// GetExport returns one persisted save point.
func (h *ChatHandler) GetExport(c echo.Context) error {
	if h.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "No store configured")
	}
	export, err := h.store.GetExport(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Failed to load export", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load export")
	}
	if export == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Export not found")
	}
	return c.JSON(http.StatusOK, export)
}

// DeleteExport removes a persisted save point.
func (h *ChatHandler) DeleteExport(c echo.Context) error {
	if h.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "No store configured")
	}
	if err := h.store.DeleteExport(c.Request().Context(), c.Param("id")); err != nil {
		log.WithCtx(c.Request().Context()).Error("Failed to delete export", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete export")
	}
	return c.NoContent(http.StatusNoContent)
}

// Extract runs quick setup: a free-text description goes through a stateless
// model call and the extraction engine, producing a character and scenario.
func (h *ChatHandler) Extract(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Description) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Description is required")
	}

	raw, err := h.llm.Generate(c.Request().Context(), quickSetupPrompt(req.Description))
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Quick setup model call failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Model call failed")
	}

	result, err := h.extractor.ExtractQuickSetup(raw)
	if err != nil {
		var exErr *domain.ExtractionError
		if errors.As(err, &exErr) {
			// Hand the raw text back so the user can fill the form manually.
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":    exErr.Reason,
				"raw_text": exErr.RawText,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Extraction failed")
	}

	return c.JSON(http.StatusOK, result)
}

// Voices lists synthesizer voices, optionally filtered by language.
func (h *ChatHandler) Voices(c echo.Context) error {
	voices, err := h.synthesizer.ListVoices(c.Request().Context(), c.QueryParam("language"))
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Failed to list voices", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to list voices")
	}
	return c.JSON(http.StatusOK, voices)
}

// Synthesize narrates text and returns MP3 audio.
func (h *ChatHandler) Synthesize(c echo.Context) error {
	var req synthesizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Text is required")
	}

	audio, err := h.synthesizer.Synthesize(c.Request().Context(), req.Text, req.VoiceID)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Synthesis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Synthesis failed")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

func (h *ChatHandler) session(c echo.Context) (*usecase.Session, error) {
	session, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	return session, nil
}

func (h *ChatHandler) sessionResponse(session *usecase.Session) sessionResponse {
	return sessionResponse{
		SessionID: session.ID(),
		State:     session.State(),
		Messages:  h.views(session, session.Messages()),
	}
}

func (h *ChatHandler) views(session *usecase.Session, messages []domain.ChatMessage) []messageView {
	out := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageView{Message: msg, Render: session.Render(msg)})
	}
	return out
}

// savePoint persists the transcript best-effort; a failed save never fails
// the chat exchange.
func (h *ChatHandler) savePoint(c echo.Context, id string) {
	if h.store == nil {
		return
	}
	if _, err := h.manager.Save(c.Request().Context(), id); err != nil {
		log.WithCtx(c.Request().Context()).Warn("Save point failed",
			zap.String("session_id", id), zap.Error(err))
	}
}

func quickSetupPrompt(description string) string {
	return fmt.Sprintf(`Read the roleplay description below and produce a single JSON object with these keys:
"name", "age", "physicalDescription", "background", "personality" (the protagonist),
"title", "location", "time", "atmosphere", "initialSituation", "roleplayInstructions" (the scenario).
Use empty strings for anything the description does not state. Respond with the JSON object only.

Description:
%s`, description)
}
