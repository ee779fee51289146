package handlers

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"pdf-from-html/internal/domain"
	"pdf-from-html/internal/infra/logging"
)

// Converter runs one conversion.
type Converter interface {
	Convert(ctx context.Context, req domain.ConversionRequest) (domain.Response, error)
}

// ConvertHandler exposes a Converter over HTTP.
type ConvertHandler struct {
	svc Converter
}

func NewConvertHandler(svc Converter) *ConvertHandler {
	return &ConvertHandler{svc: svc}
}

// Handle decodes the JSON payload, converts it and replies with the
// invocation response. The HTTP status mirrors the response status.
func (h *ConvertHandler) Handle(c *fiber.Ctx) error {
	req, err := DecodeRequest(c.Body())
	if err != nil {
		logging.Warn("Rejected conversion payload", "error", err, "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.svc.Convert(c.UserContext(), req)
	if err != nil {
		logging.Error("Conversion aborted", "error", err, "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		return err
	}
	return c.Status(resp.Status).JSON(resp)
}

// DecodeRequest parses a conversion payload. An empty body is an empty
// request; unknown fields are ignored.
func DecodeRequest(body []byte) (domain.ConversionRequest, error) {
	var req domain.ConversionRequest
	if len(body) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.ConversionRequest{}, errors.Join(domain.ErrInvalidPayload, err)
	}
	return req, nil
}
