package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worklens/backend/internal/correlation"
	"github.com/worklens/backend/internal/evidence"
	"github.com/worklens/backend/internal/semantic"
	"github.com/worklens/backend/internal/storage/models"
	"github.com/worklens/backend/internal/storage/sqlite"
	"github.com/worklens/backend/pkg/logger"
)

type CorrelateHandler struct {
	engine   *correlation.Engine
	store    *sqlite.Client
	ledger   *semantic.CostLedger
	defaults correlation.Request
}

// NewCorrelateHandler builds the handler set. The defaults request supplies
// the configured threshold and story limits when the caller omits them.
func NewCorrelateHandler(engine *correlation.Engine, store *sqlite.Client, ledger *semantic.CostLedger, defaults correlation.Request) *CorrelateHandler {
	return &CorrelateHandler{
		engine:   engine,
		store:    store,
		ledger:   ledger,
		defaults: defaults,
	}
}

func (h *CorrelateHandler) Correlate(c *fiber.Ctx) error {
	req := h.defaults
	req.EvidenceItems = nil

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	now := time.Now()
	var failed []evidence.ValidationReport
	for _, item := range req.EvidenceItems {
		if report := evidence.Inspect(item, now); !report.Valid() {
			failed = append(failed, report)
		}
	}
	if len(failed) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Evidence failed validation",
			"reports": failed,
		})
	}

	resp := h.engine.Correlate(c.Context(), req)

	h.persistRun(req, resp)

	if !resp.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}
	return c.JSON(resp)
}

func (h *CorrelateHandler) persistRun(req correlation.Request, resp *correlation.Response) {
	if h.store == nil {
		return
	}

	record := &models.RunRecord{
		ID:                    uuid.New().String(),
		EvidenceCount:         len(req.EvidenceItems),
		WorkStoriesCreated:    resp.WorkStoriesCreated,
		RelationshipsDetected: resp.RelationshipsDetected,
		AvgConfidenceScore:    resp.AvgConfidenceScore,
		ConfidenceThreshold:   req.ConfidenceThreshold,
		Success:               resp.Success,
		Message:               resp.Message,
		ProcessingTimeMS:      resp.ProcessingTimeMS,
		CreatedAt:             time.Now(),
	}
	if resp.Collection != nil {
		record.CorrelationCoverage = resp.Collection.CorrelationCoverage()
	}

	if err := h.store.InsertRunRecord(record); err != nil {
		logger.Warn("Failed to persist run record", zap.Error(err))
	}
}

func (h *CorrelateHandler) GetRunHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	records, err := h.store.GetRunHistory(limit)
	if err != nil {
		logger.Error("Failed to get run history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get run history",
		})
	}

	return c.JSON(fiber.Map{
		"runs":  records,
		"count": len(records),
	})
}

func (h *CorrelateHandler) GetSemanticUsage(c *fiber.Ctx) error {
	if h.ledger == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Semantic analysis is not enabled",
		})
	}
	return c.JSON(h.ledger.Usage())
}

// ValidateEvidence inspects a batch of evidence without correlating it.
func (h *CorrelateHandler) ValidateEvidence(c *fiber.Ctx) error {
	var req struct {
		EvidenceItems []*evidence.Item `json:"evidence_items"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	now := time.Now()
	reports := make([]evidence.ValidationReport, 0, len(req.EvidenceItems))
	valid := 0
	for _, item := range req.EvidenceItems {
		report := evidence.Inspect(item, now)
		if report.Valid() {
			valid++
		}
		reports = append(reports, report)
	}

	return c.JSON(fiber.Map{
		"reports": reports,
		"valid":   valid,
		"invalid": len(reports) - valid,
		"summary": evidence.Summarize(req.EvidenceItems),
	})
}
