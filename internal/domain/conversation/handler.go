package conversation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/carechat/internal/platform/auth"
	"github.com/ehr/carechat/internal/platform/middleware"
)

type Handler struct {
	gateway *Gateway
	reader  *Reader
}

func NewHandler(gateway *Gateway, reader *Reader) *Handler {
	return &Handler{gateway: gateway, reader: reader}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/chat", auth.RequireRole(auth.RoleAdmin, auth.RoleStaff))
	g.POST("", h.SendMessage)
	g.GET("/:patientId", h.GetHistory)
}

type sendRequest struct {
	PatientID string `json:"patientId"`
	Message   string `json:"message"`
}

type sendResponse struct {
	Response  string `json:"response"`
	MessageID string `json:"messageId"`
}

func (h *Handler) SendMessage(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	c.Set(middleware.AuditPatientKey, req.PatientID)

	reply, err := h.gateway.Handle(c.Request().Context(), req.PatientID, req.Message)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sendResponse{
		Response:  reply.ResponseText,
		MessageID: reply.AssistantMessageID.String(),
	})
}

func (h *Handler) GetHistory(c echo.Context) error {
	msgs, err := h.reader.Transcript(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

type issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

func toHTTPError(err error) error {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	switch cerr.Kind {
	case KindInvalidInput:
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"message": []issue{{Path: []string{cerr.Field}, Message: cerr.Err.Error()}},
		})
	case KindPatientNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
