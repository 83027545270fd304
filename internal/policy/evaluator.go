package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/phone"
)

// HistoryCounter counts prior decisions for a caller
type HistoryCounter interface {
	CountByAction(ctx context.Context, hash string, action models.DecisionAction) (int, error)
}

// BlocklistAdder adds a caller to the blocklist
type BlocklistAdder interface {
	Add(ctx context.Context, hash, label string) (*models.ListEntry, error)
}

// Call is what the evaluator knows about one incoming call
type Call struct {
	E164      string
	Hash      string
	IsContact bool
	Premium   bool
}

// Evaluator applies the advanced blocking policy to one call
type Evaluator struct {
	homePrefix string
	history    HistoryCounter
	blocklist  BlocklistAdder
	location   *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// NewEvaluator creates a policy evaluator; loc is the timezone used by the night guard
func NewEvaluator(homePrefix string, history HistoryCounter, blocklist BlocklistAdder, loc *time.Location, logger *zap.Logger) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{
		homePrefix: homePrefix,
		history:    history,
		blocklist:  blocklist,
		location:   loc,
		now:        time.Now,
		logger:     logger,
	}
}

// Evaluate returns the first matching rule's decision, or nil to continue
func (e *Evaluator) Evaluate(ctx context.Context, call Call, p models.AdvancedBlockingPolicy) (*models.Decision, error) {
	if p.IsUnmodifiedDefault() {
		return nil, nil
	}

	if p.NightGuardEnabled && !call.IsContact {
		hour := e.now().In(e.location).Hour()
		if InNightWindow(hour, p.NightGuardStartHour, p.NightGuardEndHour) {
			if call.Premium && p.NightGuardAction == models.NightGuardReject {
				d := models.Reject(models.SourceNightGuard)
				return &d, nil
			}
			d := models.Silence(1.0, "night_guard", models.SourceNightGuard)
			return &d, nil
		}
	}

	if p.AllowContactsOnly && !call.IsContact {
		d := models.Silence(1.0, "contacts_only", models.SourceContactsOnly)
		return &d, nil
	}

	if p.SilenceUnknownNumbers && !call.IsContact {
		d := models.Silence(0.5, "silence_unknown", models.SourceSilenceUnknown)
		return &d, nil
	}

	if p.BlockInternational && call.E164 != "" && !strings.HasPrefix(call.E164, e.homePrefix) {
		d := models.Silence(1.0, "international_lock", models.SourceInternationalLock)
		return &d, nil
	}

	if p.AutoEscalateEnabled && call.Hash != "" {
		return e.autoEscalate(ctx, call.Hash, p.AutoEscalateThreshold)
	}

	return nil, nil
}

func (e *Evaluator) autoEscalate(ctx context.Context, hash string, threshold int) (*models.Decision, error) {
	rejections, err := e.history.CountByAction(ctx, hash, models.ActionReject)
	if err != nil {
		return nil, fmt.Errorf("failed to count prior rejections: %w", err)
	}
	if rejections < threshold {
		return nil, nil
	}

	label := fmt.Sprintf("Auto-blocked after %d rejections", rejections)
	if _, err := e.blocklist.Add(ctx, hash, label); err != nil {
		return nil, fmt.Errorf("failed to auto-block caller: %w", err)
	}

	e.logger.Info("caller auto-escalated to blocklist",
		zap.String("hash", phone.ShortHash(hash)),
		zap.Int("rejections", rejections))

	d := models.Reject(models.SourceAutoEscalate)
	d.Label = label
	return &d, nil
}

// InNightWindow reports whether hour falls in [start, end), wrapping past midnight
// when start > end. An equal start and end is an empty window.
func InNightWindow(hour, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}
