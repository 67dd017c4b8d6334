package semantic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/worklens/backend/pkg/logger"
)

const (
	defaultMonthlyBudget         = 15.00
	defaultEmbeddingCostPerToken = 0.0001
	defaultLLMCostPerRequest     = 0.01

	monthFormat = "2006-01"
)

// LedgerRecord is the persisted state of one month's spend.
type LedgerRecord struct {
	Month string  `json:"month"`
	Spend float64 `json:"spend"`
}

// LedgerStore persists spend across process restarts.
type LedgerStore interface {
	Load(ctx context.Context) (LedgerRecord, error)
	Save(ctx context.Context, record LedgerRecord) error
}

// MemoryLedgerStore keeps the record in process memory. Spend resets on
// restart, so it only suits tests and single-run tooling.
type MemoryLedgerStore struct {
	mu     sync.Mutex
	record LedgerRecord
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{}
}

func (s *MemoryLedgerStore) Load(ctx context.Context) (LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record, nil
}

func (s *MemoryLedgerStore) Save(ctx context.Context, record LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = record
	return nil
}

// UsageReport is a point-in-time snapshot of the month's budget position.
type UsageReport struct {
	Month              string  `json:"month"`
	MonthlyBudget      float64 `json:"monthly_budget"`
	CurrentSpend       float64 `json:"current_spend"`
	RemainingBudget    float64 `json:"remaining_budget"`
	UtilizationPercent float64 `json:"utilization_percent"`
	CanAffordEmbedding bool    `json:"can_afford_embedding"`
	CanAffordLLMCall   bool    `json:"can_afford_llm_call"`
}

// CostLedger enforces a monthly spend cap on paid API usage. Spend rolls
// over to zero when the calendar month changes. All methods are safe for
// concurrent use.
type CostLedger struct {
	mu    sync.Mutex
	store LedgerStore

	monthlyBudget         float64
	embeddingCostPerToken float64
	llmCostPerRequest     float64

	month string
	spend float64

	now func() time.Time
}

func NewCostLedger(ctx context.Context, store LedgerStore, monthlyBudget float64) (*CostLedger, error) {
	if monthlyBudget <= 0 {
		monthlyBudget = defaultMonthlyBudget
	}

	ledger := &CostLedger{
		store:                 store,
		monthlyBudget:         monthlyBudget,
		embeddingCostPerToken: defaultEmbeddingCostPerToken,
		llmCostPerRequest:     defaultLLMCostPerRequest,
		now:                   time.Now,
	}

	record, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost ledger: %w", err)
	}
	ledger.month = record.Month
	ledger.spend = record.Spend

	return ledger, nil
}

// rollover resets spend when the calendar month changed. Caller holds the lock.
func (l *CostLedger) rollover() {
	current := l.now().Format(monthFormat)
	if l.month != current {
		if l.month != "" && l.spend > 0 {
			logger.Info("Resetting monthly semantic spend",
				zap.String("previous_month", l.month),
				zap.Float64("previous_spend", l.spend),
			)
		}
		l.month = current
		l.spend = 0
	}
}

// EmbeddingCost estimates the charge for embedding the given token count.
func (l *CostLedger) EmbeddingCost(tokens int) float64 {
	return float64(tokens) * l.embeddingCostPerToken
}

// LLMCallCost is the flat estimated charge for one adjudication call.
func (l *CostLedger) LLMCallCost() float64 {
	return l.llmCostPerRequest
}

func (l *CostLedger) CanAffordEmbedding(tokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.spend+l.EmbeddingCost(tokens) <= l.monthlyBudget
}

func (l *CostLedger) CanAffordLLMCall() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.spend+l.llmCostPerRequest <= l.monthlyBudget
}

// RecordUsage adds the cost to the month's spend and persists it. A store
// failure keeps the in-memory spend so the cap still holds for this process.
func (l *CostLedger) RecordUsage(ctx context.Context, cost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	l.spend += cost

	record := LedgerRecord{Month: l.month, Spend: l.spend}
	if err := l.store.Save(ctx, record); err != nil {
		logger.Warn("Failed to persist cost ledger",
			zap.Error(err),
			zap.Float64("spend", l.spend),
		)
	}
}

func (l *CostLedger) Usage() UsageReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	remaining := l.monthlyBudget - l.spend
	if remaining < 0 {
		remaining = 0
	}

	return UsageReport{
		Month:              l.month,
		MonthlyBudget:      l.monthlyBudget,
		CurrentSpend:       l.spend,
		RemainingBudget:    remaining,
		UtilizationPercent: l.spend / l.monthlyBudget * 100.0,
		CanAffordEmbedding: l.spend+l.embeddingCostPerToken <= l.monthlyBudget,
		CanAffordLLMCall:   l.spend+l.llmCostPerRequest <= l.monthlyBudget,
	}
}
