package screening

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"call-screener/internal/behavior"
	"call-screener/internal/config"
	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/phone"
	"call-screener/internal/policy"
	"call-screener/internal/reputation"
)

// Behavior actions selectable by behavior.action
const (
	BehaviorOff     = "off"
	BehaviorFlag    = "flag"
	BehaviorSilence = "silence"
)

// MembershipChecker answers list membership by number hash
type MembershipChecker interface {
	Contains(ctx context.Context, hash string) (bool, error)
}

// PrefixMatcher finds the winning prefix rule for a number
type PrefixMatcher interface {
	FindMatch(ctx context.Context, e164 string) (*models.PrefixRule, error)
}

// PolicyEvaluator applies the advanced blocking policy
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, call policy.Call, p models.AdvancedBlockingPolicy) (*models.Decision, error)
}

// ReputationLookup returns a caller's reputation. It never fails.
type ReputationLookup interface {
	Lookup(ctx context.Context, hash string) models.ReputationResult
}

// SignalSource computes behavioral anomaly signals
type SignalSource interface {
	Signals(ctx context.Context, hash string) (behavior.Signals, error)
}

// SettingsProvider returns the active settings and policy
type SettingsProvider interface {
	Current(ctx context.Context) (models.SettingsDocument, error)
}

// Entitlements reports the premium tier
type Entitlements interface {
	IsPremium(ctx context.Context) bool
}

// Dependencies are the collaborators consulted by the pipeline stages
type Dependencies struct {
	Whitelist    MembershipChecker
	Blocklist    MembershipChecker
	Contacts     MembershipChecker
	Rules        PrefixMatcher
	Policy       PolicyEvaluator
	Reputation   ReputationLookup
	Behavior     SignalSource
	Settings     SettingsProvider
	Entitlements Entitlements
}

// call is the per-evaluation state shared by the stages
type call struct {
	identity models.CallerIdentity
	settings models.Settings
	policy   models.AdvancedBlockingPolicy
	premium  bool
}

// stage returns a decision, or nil for no opinion
type stage struct {
	name string
	eval func(ctx context.Context, c *call) (*models.Decision, error)
	// required stages abort the evaluation on error
	required bool
}

// Pipeline evaluates the ordered stages; the first decision wins
type Pipeline struct {
	deps       Dependencies
	thresholds config.ThresholdConfig
	stages     []stage
	metrics    *metrics.MetricsCollector
	logger     *zap.Logger
}

// NewPipeline creates the screening pipeline
func NewPipeline(deps Dependencies, thresholds config.ThresholdConfig, behaviorAction string, m *metrics.MetricsCollector, logger *zap.Logger) *Pipeline {
	p := &Pipeline{
		deps:       deps,
		thresholds: thresholds,
		metrics:    m,
		logger:     logger,
	}

	p.stages = []stage{
		{name: "hidden", eval: p.hiddenStage},
		{name: "whitelist", eval: p.whitelistStage, required: true},
		{name: "blocklist", eval: p.blocklistStage},
		{name: "prefix_rule", eval: p.prefixStage},
		{name: "policy", eval: p.policyStage},
		{name: "reputation", eval: p.reputationStage},
	}
	if behaviorAction == BehaviorFlag || behaviorAction == BehaviorSilence {
		action := behaviorAction
		p.stages = append(p.stages, stage{name: "behavioral", eval: func(ctx context.Context, c *call) (*models.Decision, error) {
			return p.behaviorStage(ctx, c, action)
		}})
	}

	return p
}

// Evaluate runs the stages in order. Stage errors are logged and treated as no opinion,
// except for required stages (the whitelist), whose error ends the evaluation.
// An error is also returned when ctx ends before a decision is reached.
func (p *Pipeline) Evaluate(ctx context.Context, identity models.CallerIdentity) (models.Decision, error) {
	doc, err := p.deps.Settings.Current(ctx)
	if err != nil {
		p.logger.Warn("using default settings", zap.Error(err))
	}

	c := &call{
		identity: identity,
		settings: doc.Settings,
		policy:   doc.Policy,
		premium:  p.deps.Entitlements.IsPremium(ctx),
	}

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return models.Decision{}, fmt.Errorf("screening interrupted before %s: %w", s.name, err)
		}

		d, err := s.eval(ctx, c)
		if err != nil {
			p.metrics.RecordStageError(s.name)
			if s.required {
				return models.Decision{}, fmt.Errorf("%s lookup failed: %w", s.name, err)
			}
			p.logger.Warn("screening stage failed",
				zap.String("stage", s.name),
				zap.String("hash", phone.ShortHash(identity.NumberHash)),
				zap.Error(err))
			continue
		}
		if d != nil {
			return *d, nil
		}
	}

	return models.Allow(models.SourceDefault), nil
}

func (p *Pipeline) hiddenStage(ctx context.Context, c *call) (*models.Decision, error) {
	if c.identity.RawNumberPresent {
		return nil, nil
	}
	if c.premium && c.settings.BlockHiddenNumbers {
		d := models.Reject(models.SourceHidden)
		return &d, nil
	}
	d := models.Silence(0.5, "", models.SourceHidden)
	return &d, nil
}

func (p *Pipeline) whitelistStage(ctx context.Context, c *call) (*models.Decision, error) {
	return p.membership(ctx, c, p.deps.Whitelist, models.Allow(models.SourceWhitelist))
}

func (p *Pipeline) blocklistStage(ctx context.Context, c *call) (*models.Decision, error) {
	return p.membership(ctx, c, p.deps.Blocklist, models.Reject(models.SourceBlocklist))
}

func (p *Pipeline) membership(ctx context.Context, c *call, list MembershipChecker, hit models.Decision) (*models.Decision, error) {
	if !c.identity.HasHash() {
		return nil, nil
	}
	ok, err := list.Contains(ctx, c.identity.NumberHash)
	if err != nil || !ok {
		return nil, err
	}
	return &hit, nil
}

func (p *Pipeline) prefixStage(ctx context.Context, c *call) (*models.Decision, error) {
	if c.identity.NormalizedE164 == "" {
		return nil, nil
	}
	rule, err := p.deps.Rules.FindMatch(ctx, c.identity.NormalizedE164)
	if err != nil || rule == nil {
		return nil, err
	}

	var d models.Decision
	switch rule.Action {
	case models.RuleBlock:
		d = models.Reject(models.SourcePrefixRule)
	case models.RuleSilence:
		d = models.Silence(1.0, rule.Label, models.SourcePrefixRule)
	case models.RuleAllow:
		d = models.Allow(models.SourcePrefixRule)
	default:
		return nil, fmt.Errorf("prefix rule %s has unknown action %q", rule.ID, rule.Action)
	}
	d.Label = rule.Label
	return &d, nil
}

func (p *Pipeline) policyStage(ctx context.Context, c *call) (*models.Decision, error) {
	if c.policy.IsUnmodifiedDefault() {
		return nil, nil
	}

	isContact := false
	if c.identity.HasHash() {
		ok, err := p.deps.Contacts.Contains(ctx, c.identity.NumberHash)
		if err != nil {
			// Contact status unknown; the policy cannot be applied safely
			return nil, fmt.Errorf("failed to check contacts: %w", err)
		}
		isContact = ok
	}

	return p.deps.Policy.Evaluate(ctx, policy.Call{
		E164:      c.identity.NormalizedE164,
		Hash:      c.identity.NumberHash,
		IsContact: isContact,
		Premium:   c.premium,
	}, c.policy)
}

func (p *Pipeline) reputationStage(ctx context.Context, c *call) (*models.Decision, error) {
	if !c.identity.HasHash() {
		return nil, nil
	}

	r := p.deps.Reputation.Lookup(ctx, c.identity.NumberHash)
	if !reputation.Actionable(r, p.thresholds.MinReportersToAct) {
		return nil, nil
	}

	source := models.SourceRemote
	if r.Source == models.ReputationSeedDB {
		source = models.SourceSeedDB
	}

	switch {
	case c.premium && c.settings.AutoBlockHighConfidence && r.ConfidenceScore >= p.thresholds.AutoBlock:
		return &models.Decision{
			Action:   models.ActionReject,
			Score:    r.ConfidenceScore,
			Category: r.Category,
			Source:   source,
		}, nil
	case r.ConfidenceScore >= p.thresholds.Block || source == models.SourceSeedDB:
		d := models.Silence(r.ConfidenceScore, r.Category, source)
		return &d, nil
	case r.ConfidenceScore >= p.thresholds.Flag:
		d := models.Flag(r.ConfidenceScore, r.Category, source)
		return &d, nil
	}
	return nil, nil
}

// behaviorScores weight each signal category
var behaviorScores = map[string]float64{
	"burst_pattern":     0.8,
	"bait_call":         0.7,
	"frequency_anomaly": 0.6,
}

func (p *Pipeline) behaviorStage(ctx context.Context, c *call, action string) (*models.Decision, error) {
	if !c.identity.HasHash() {
		return nil, nil
	}

	signals, err := p.deps.Behavior.Signals(ctx, c.identity.NumberHash)
	if err != nil || !signals.Any() {
		return nil, err
	}

	category := signals.Category()
	score := behaviorScores[category]
	var d models.Decision
	if action == BehaviorSilence {
		d = models.Silence(score, category, models.SourceBehavioral)
	} else {
		d = models.Flag(score, category, models.SourceBehavioral)
	}
	return &d, nil
}
