package websocket

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler upgrades "/ws" requests. Clients pass the session they want to
// watch as a query parameter; one connection serves one session.
func (s *Server) Handler(c echo.Context) error {
	sessionID := c.QueryParam("session")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session query parameter is required")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	userID := c.Get("user_id").(int)

	client := NewClient(conn, userID, sessionID)
	s.hub.Register(client)

	// Start the client goroutines
	client.Run()

	// Register cleanup when client is done
	defer s.hub.Unregister(client)

	// Wait for the client context to be done (connection closed)
	<-client.Context().Done()

	return nil
}
