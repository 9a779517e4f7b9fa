package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/coolfix/service-desk/internal/analyzer"
	"github.com/coolfix/service-desk/internal/api/dto"
	"github.com/coolfix/service-desk/internal/detector"
	apperrors "github.com/coolfix/service-desk/pkg/util/errorutil"
)

// AnalyzeHandler classifies a single message without touching any session.
type AnalyzeHandler struct {
	analyzer *analyzer.Analyzer
	detector *detector.Detector
}

// NewAnalyzeHandler constructs handler.
func NewAnalyzeHandler(a *analyzer.Analyzer, d *detector.Detector) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: a, detector: d}
}

// Analyze POST /analyze.
func (h *AnalyzeHandler) Analyze(c *fiber.Ctx) error {
	var req dto.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return apperrors.NewValidationError("message required", map[string]any{"field": "message"})
	}

	result := h.analyzer.Analyze(c.UserContext(), message, nil, nil)
	signal := h.detector.Detect(c.UserContext(), message, nil)
	if signal.MissingFields == nil {
		signal.MissingFields = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.AnalyzeResponse{
		Analysis:       result,
		FailedCall:     signal,
		ShouldEscalate: analyzer.ShouldEscalate(result),
	}})
}
