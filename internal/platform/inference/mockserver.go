package inference

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// MockReply is the demo answer served by the mock backend.
func MockReply(message, patientName string) string {
	if patientName == "" {
		patientName = "the patient"
	}
	return fmt.Sprintf("Hello! As a dental assistant, I verify that I received your message: '%s'. How can I help %s today?",
		message, patientName)
}

// NewMockBackend returns an echo server speaking the backend contract on
// POST /generate. It stands in for a real model during development.
func NewMockBackend() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.POST("/generate", func(c echo.Context) error {
		var req generateRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid request body")
		}
		if req.Message == "" {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "message is required")
		}
		name := ""
		if req.PatientContext != nil {
			name = req.PatientContext.Name
		}
		return c.JSON(http.StatusOK, generateResponse{Response: MockReply(req.Message, name)})
	})
	return e
}
