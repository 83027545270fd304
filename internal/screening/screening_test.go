package screening

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/behavior"
	"call-screener/internal/config"
	"call-screener/internal/memstore"
	"call-screener/internal/models"
	"call-screener/internal/notify"
	"call-screener/internal/phone"
	"call-screener/internal/policy"
	"call-screener/internal/reputation"
	"call-screener/internal/rules"
	"call-screener/internal/services"
)

const (
	spamNumber   = "+919876543210"
	friendNumber = "+919811112222"
)

var testThresholds = config.ThresholdConfig{
	MinReportersToAct: 3,
	Block:             0.7,
	Flag:              0.4,
	AutoBlock:         0.9,
}

// slowRemote ignores its context and answers after delay
type slowRemote struct {
	delay time.Duration
	rep   *reputation.RemoteReputation
}

func (s *slowRemote) GetReputation(ctx context.Context, hash string) (*reputation.RemoteReputation, error) {
	time.Sleep(s.delay)
	return s.rep, nil
}

func (s *slowRemote) Report(ctx context.Context, hash, category string) error { return nil }
func (s *slowRemote) Correct(ctx context.Context, hash string) error          { return nil }

// MockMembership is a mock implementation of a list membership check
type MockMembership struct {
	mock.Mock
}

func (m *MockMembership) Contains(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

// MockNotifier is a mock implementation of the notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

// funcEvaluator adapts a function to Evaluator
type funcEvaluator func(ctx context.Context, identity models.CallerIdentity) (models.Decision, error)

func (f funcEvaluator) Evaluate(ctx context.Context, identity models.CallerIdentity) (models.Decision, error) {
	return f(ctx, identity)
}

type harness struct {
	hasher    *phone.Hasher
	whitelist *memstore.ListStore
	blocklist *memstore.ListStore
	contacts  *memstore.ListStore
	history   *memstore.HistoryStore
	events    *behavior.MemoryEventStore
	analyzer  *behavior.Analyzer
	rules     *rules.Service
	settings  *services.SettingsService
	seed      []models.SeedEntry
	remote    reputation.Remote
	repTime   time.Duration
	premium   bool
	behavior  string
	deadline  time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	behaviorCfg := &config.BehaviorConfig{
		Retention:          24 * time.Hour,
		CapPerHash:         100,
		FrequencyWindow:    time.Hour,
		FrequencyThreshold: 3,
		BurstWindow:        15 * time.Minute,
		BurstThreshold:     5,
		ShortRingWindow:    24 * time.Hour,
		ShortRingThreshold: 2,
		ShortRingDuration:  8 * time.Second,
	}
	events := behavior.NewMemoryEventStore(behaviorCfg.Retention, behaviorCfg.CapPerHash)
	return &harness{
		hasher:    phone.NewHasher(&config.PhoneConfig{HomePrefix: "+91", Salt: "test-salt"}),
		whitelist: memstore.NewListStore(),
		blocklist: memstore.NewListStore(),
		contacts:  memstore.NewListStore(),
		history:   memstore.NewHistoryStore(),
		events:    events,
		analyzer:  behavior.NewAnalyzer(events, behaviorCfg, zap.NewNop()),
		rules:     rules.NewService(memstore.NewPrefixRuleStore(), zap.NewNop()),
		settings:  services.NewSettingsService(memstore.NewSettingsStore(), zap.NewNop()),
		repTime:   time.Second,
		behavior:  BehaviorOff,
		deadline:  1400 * time.Millisecond,
	}
}

func (h *harness) hash(t *testing.T, number string) string {
	t.Helper()
	hash, ok := h.hasher.Hash(number)
	require.True(t, ok)
	return hash
}

func (h *harness) deps(t *testing.T) Dependencies {
	t.Helper()
	snapshot := reputation.NewSeedSnapshot(memstore.NewSeedStore(h.seed...), nil, zap.NewNop())
	require.NoError(t, snapshot.Reload(context.Background()))
	breaker := reputation.NewBreaker("reputation", &config.BreakerConfig{
		FailureThreshold: 3,
		Window:           time.Minute,
		Cooldown:         time.Minute,
	}, nil, zap.NewNop())

	return Dependencies{
		Whitelist:    h.whitelist,
		Blocklist:    h.blocklist,
		Contacts:     h.contacts,
		Rules:        h.rules,
		Policy:       policy.NewEvaluator("+91", h.history, h.blocklist, time.UTC, zap.NewNop()),
		Reputation:   reputation.NewService(snapshot, h.remote, breaker, h.repTime, nil, zap.NewNop()),
		Behavior:     h.analyzer,
		Settings:     h.settings,
		Entitlements: services.NewConfigEntitlements(&config.EntitlementConfig{Premium: h.premium}),
	}
}

func (h *harness) engine(t *testing.T) *Engine {
	t.Helper()
	pipeline := NewPipeline(h.deps(t), testThresholds, h.behavior, nil, zap.NewNop())
	return NewEngine(h.hasher, pipeline, nil, h.deadline, nil, zap.NewNop())
}

func number(s string) *string {
	return &s
}

func TestHiddenNumber(t *testing.T) {
	h := newHarness(t)
	_, err := h.settings.UpdateSettings(context.Background(), models.Settings{BlockHiddenNumbers: true})
	require.NoError(t, err)

	// Free tier cannot block hidden numbers
	d := h.engine(t).Screen(context.Background(), nil)
	assert.Equal(t, models.Silence(0.5, "", models.SourceHidden), d)

	h.premium = true
	d = h.engine(t).Screen(context.Background(), number("  "))
	assert.Equal(t, models.Reject(models.SourceHidden), d)
}

func TestWhitelistOutranksEverything(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	hash := h.hash(t, spamNumber)

	_, err := h.whitelist.Add(ctx, hash, "Plumber")
	require.NoError(t, err)
	_, err = h.blocklist.Add(ctx, hash, "Spam")
	require.NoError(t, err)
	require.NoError(t, h.rules.Add(ctx, &models.PrefixRule{Pattern: "+9198", MatchType: models.MatchPrefix, Action: models.RuleBlock}))
	_, err = h.settings.ApplyPreset(ctx, models.PresetStrict)
	require.NoError(t, err)
	h.seed = []models.SeedEntry{{NumberHash: hash, ConfidenceScore: 0.99, Category: "scam"}}

	d := h.engine(t).Screen(ctx, number(spamNumber))
	assert.Equal(t, models.Allow(models.SourceWhitelist), d)
}

func TestBlocklistHit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.blocklist.Add(ctx, h.hash(t, spamNumber), "Spam")
	require.NoError(t, err)

	d := h.engine(t).Screen(ctx, number("098765 43210"))
	assert.Equal(t, models.Reject(models.SourceBlocklist), d)
}

func TestPrefixRuleBeforePolicy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.settings.ApplyPreset(ctx, models.PresetStrict)
	require.NoError(t, err)
	require.NoError(t, h.rules.Add(ctx, &models.PrefixRule{Pattern: "+91981111", MatchType: models.MatchPrefix, Action: models.RuleAllow}))
	require.NoError(t, h.rules.Add(ctx, &models.PrefixRule{Pattern: "+9198", MatchType: models.MatchPrefix, Action: models.RuleSilence, Label: "Mobile range"}))

	e := h.engine(t)
	assert.Equal(t, models.Allow(models.SourcePrefixRule), e.Screen(ctx, number(friendNumber)))
	silenced := models.Silence(1.0, "Mobile range", models.SourcePrefixRule)
	silenced.Label = "Mobile range"
	assert.Equal(t, silenced, e.Screen(ctx, number(spamNumber)))
}

func TestPolicyWithoutIdentifier(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := models.DefaultPolicy()
	p.SilenceUnknownNumbers = true
	p.BlockInternational = true
	_, err := h.settings.UpdatePolicy(ctx, p)
	require.NoError(t, err)

	// Unnormalizable numbers skip the hash stages but not the policy
	d := h.engine(t).Screen(ctx, number("12"))
	assert.Equal(t, models.Silence(0.5, "silence_unknown", models.SourceSilenceUnknown), d)
}

func TestContactsBypassPolicy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := models.DefaultPolicy()
	p.AllowContactsOnly = true
	_, err := h.settings.UpdatePolicy(ctx, p)
	require.NoError(t, err)
	_, err = h.contacts.Add(ctx, h.hash(t, friendNumber), "Alice")
	require.NoError(t, err)

	e := h.engine(t)
	assert.Equal(t, models.Allow(models.SourceDefault), e.Screen(ctx, number(friendNumber)))
	assert.Equal(t, models.SourceContactsOnly, e.Screen(ctx, number(spamNumber)).Source)
}

func TestAutoEscalateAtThreshold(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := models.DefaultPolicy()
	p.AutoEscalateEnabled = true
	_, err := h.settings.UpdatePolicy(ctx, p)
	require.NoError(t, err)
	hash := h.hash(t, spamNumber)

	e := h.engine(t)
	for i := 0; i < 2; i++ {
		require.NoError(t, h.history.Record(ctx, &models.HistoryRecord{NumberHash: hash, Action: models.ActionReject}))
		assert.Equal(t, models.SourceDefault, e.Screen(ctx, number(spamNumber)).Source)
	}
	require.NoError(t, h.history.Record(ctx, &models.HistoryRecord{NumberHash: hash, Action: models.ActionReject}))
	escalated := e.Screen(ctx, number(spamNumber))
	assert.Equal(t, models.ActionReject, escalated.Action)
	assert.Equal(t, models.SourceAutoEscalate, escalated.Source)
	assert.Equal(t, "Auto-blocked after 3 rejections", escalated.Label)

	// Once blocked the blocklist answers first
	assert.Equal(t, models.Reject(models.SourceBlocklist), e.Screen(ctx, number(spamNumber)))
}

func TestSeedHitSilences(t *testing.T) {
	h := newHarness(t)
	h.seed = []models.SeedEntry{{NumberHash: h.hash(t, spamNumber), ConfidenceScore: 0.5, Category: "telemarketing"}}

	d := h.engine(t).Screen(context.Background(), number(spamNumber))
	assert.Equal(t, models.Silence(0.5, "telemarketing", models.SourceSeedDB), d)
}

func TestRemoteReputationThresholds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	remote := &slowRemote{rep: &reputation.RemoteReputation{ConfidenceScore: 0.95, Category: "scam", UniqueReporters: 10}}
	h.remote = remote

	assert.Equal(t, models.Silence(0.95, "scam", models.SourceRemote), h.engine(t).Screen(ctx, number(spamNumber)))

	h.premium = true
	_, err := h.settings.UpdateSettings(ctx, models.Settings{AutoBlockHighConfidence: true})
	require.NoError(t, err)
	d := h.engine(t).Screen(ctx, number(spamNumber))
	assert.Equal(t, models.ActionReject, d.Action)
	assert.Equal(t, models.SourceRemote, d.Source)

	remote.rep = &reputation.RemoteReputation{ConfidenceScore: 0.5, Category: "survey", UniqueReporters: 3}
	assert.Equal(t, models.Flag(0.5, "survey", models.SourceRemote), h.engine(t).Screen(ctx, number(spamNumber)))

	// Too few reporters to act on
	remote.rep = &reputation.RemoteReputation{ConfidenceScore: 0.99, UniqueReporters: 2}
	assert.Equal(t, models.Allow(models.SourceDefault), h.engine(t).Screen(ctx, number(spamNumber)))
}

func TestRemoteTimeoutFallsThroughToDefault(t *testing.T) {
	h := newHarness(t)
	h.remote = &slowRemote{delay: 2 * time.Second, rep: &reputation.RemoteReputation{ConfidenceScore: 0.99, UniqueReporters: 50}}
	h.repTime = 100 * time.Millisecond

	start := time.Now()
	d := h.engine(t).Screen(context.Background(), number(spamNumber))
	assert.Equal(t, models.Allow(models.SourceDefault), d)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBehavioralStage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	hash := h.hash(t, spamNumber)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.analyzer.RecordIncomingCall(ctx, hash))
	}

	assert.Equal(t, models.Allow(models.SourceDefault), h.engine(t).Screen(ctx, number(spamNumber)))

	h.behavior = BehaviorFlag
	assert.Equal(t, models.Flag(0.8, "burst_pattern", models.SourceBehavioral), h.engine(t).Screen(ctx, number(spamNumber)))

	h.behavior = BehaviorSilence
	assert.Equal(t, models.Silence(0.8, "burst_pattern", models.SourceBehavioral), h.engine(t).Screen(ctx, number(spamNumber)))
}

func TestStageErrorIsNoOpinion(t *testing.T) {
	h := newHarness(t)
	deps := h.deps(t)
	failing := &MockMembership{}
	failing.On("Contains", mock.Anything, mock.Anything).Return(false, errors.New("redis: connection refused"))
	deps.Blocklist = failing

	pipeline := NewPipeline(deps, testThresholds, BehaviorOff, nil, zap.NewNop())
	require.NoError(t, h.rules.Add(context.Background(), &models.PrefixRule{Pattern: "+9198", MatchType: models.MatchPrefix, Action: models.RuleSilence, Label: "Mobile range"}))

	d, err := pipeline.Evaluate(context.Background(), h.hasher.Identify(number(spamNumber)))
	require.NoError(t, err)
	assert.Equal(t, models.SourcePrefixRule, d.Source)
	assert.Equal(t, models.ActionSilence, d.Action)
	failing.AssertExpectations(t)
}

func TestWhitelistErrorFailsOpen(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.blocklist.Add(ctx, h.hash(t, friendNumber), "Spam")
	require.NoError(t, err)

	deps := h.deps(t)
	failing := &MockMembership{}
	failing.On("Contains", mock.Anything, h.hash(t, friendNumber)).Return(false, errors.New("whitelist store down"))
	deps.Whitelist = failing

	pipeline := NewPipeline(deps, testThresholds, BehaviorOff, nil, zap.NewNop())
	_, err = pipeline.Evaluate(ctx, h.hasher.Identify(number(friendNumber)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whitelist lookup failed")

	e := NewEngine(h.hasher, pipeline, nil, time.Second, nil, zap.NewNop())
	d := e.Screen(ctx, number(friendNumber))
	assert.NotEqual(t, models.ActionReject, d.Action)
	assert.Equal(t, models.Allow(models.SourceFailOpen), d)
	failing.AssertExpectations(t)
}

func TestContactLookupErrorSkipsPolicy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.premium = true
	_, err := h.settings.ApplyPreset(ctx, models.PresetStrict)
	require.NoError(t, err)

	deps := h.deps(t)
	contacts := &MockMembership{}
	contacts.On("Contains", mock.Anything, h.hash(t, friendNumber)).Return(false, errors.New("contacts unavailable"))
	deps.Contacts = contacts

	pipeline := NewPipeline(deps, testThresholds, BehaviorOff, nil, zap.NewNop())
	d, err := pipeline.Evaluate(ctx, h.hasher.Identify(number(friendNumber)))
	require.NoError(t, err)
	assert.Equal(t, models.Allow(models.SourceDefault), d)
	contacts.AssertExpectations(t)
}

func TestDeadlineFailsOpen(t *testing.T) {
	h := newHarness(t)
	slow := funcEvaluator(func(ctx context.Context, identity models.CallerIdentity) (models.Decision, error) {
		time.Sleep(500 * time.Millisecond)
		return models.Reject(models.SourceBlocklist), nil
	})
	e := NewEngine(h.hasher, slow, nil, 50*time.Millisecond, nil, zap.NewNop())

	start := time.Now()
	d := e.Screen(context.Background(), number(spamNumber))
	assert.Equal(t, models.Allow(models.SourceFailOpen), d)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestPanicFailsOpen(t *testing.T) {
	h := newHarness(t)
	boom := funcEvaluator(func(ctx context.Context, identity models.CallerIdentity) (models.Decision, error) {
		panic("nil map")
	})
	e := NewEngine(h.hasher, boom, nil, time.Second, nil, zap.NewNop())
	assert.Equal(t, models.Allow(models.SourceFailOpen), e.Screen(context.Background(), number(spamNumber)))

	failing := funcEvaluator(func(ctx context.Context, identity models.CallerIdentity) (models.Decision, error) {
		return models.Decision{}, errors.New("settings unavailable")
	})
	e = NewEngine(h.hasher, failing, nil, time.Second, nil, zap.NewNop())
	assert.Equal(t, models.Allow(models.SourceFailOpen), e.Screen(context.Background(), number(spamNumber)))
}

func TestDecisionDeliveredExactlyOnce(t *testing.T) {
	h := newHarness(t)
	finished := make(chan struct{})
	late := funcEvaluator(func(ctx context.Context, identity models.CallerIdentity) (models.Decision, error) {
		defer close(finished)
		time.Sleep(100 * time.Millisecond)
		return models.Reject(models.SourceBlocklist), nil
	})
	e := NewEngine(h.hasher, late, nil, 20*time.Millisecond, nil, zap.NewNop())

	var calls int32
	var mu sync.Mutex
	var got []models.Decision
	e.ScreenAsync(context.Background(), number(spamNumber), func(d models.Decision) {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		got = append(got, d)
		mu.Unlock()
	})

	<-finished
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, models.SourceFailOpen, got[0].Source)
}

func TestFollowUpRecordsAfterDecision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	hash := h.hash(t, spamNumber)
	_, err := h.blocklist.Add(ctx, hash, "Spam")
	require.NoError(t, err)

	notifier := &MockNotifier{}
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.NumberHash == hash && n.Action == models.ActionReject
	})).Return(nil).Once()

	runner := NewFollowUpRunner(&config.FollowUpConfig{Workers: 2, QueueSize: 8, Timeout: time.Second}, FollowUpDeps{
		History:  h.history,
		Notifier: notifier,
		Events:   h.analyzer,
		Settings: h.settings,
	}, nil, zap.NewNop())
	runner.Start()

	pipeline := NewPipeline(h.deps(t), testThresholds, BehaviorOff, nil, zap.NewNop())
	e := NewEngine(h.hasher, pipeline, runner, time.Second, nil, zap.NewNop())

	assert.Equal(t, models.Reject(models.SourceBlocklist), e.Screen(ctx, number(spamNumber)))
	// Default settings do not notify on allow
	assert.Equal(t, models.Allow(models.SourceDefault), e.Screen(ctx, number(friendNumber)))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(stopCtx))

	n, err := h.history.CountByAction(ctx, hash, models.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := h.history.Recent(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	count, err := h.events.Count(ctx, hash, models.EventIncomingCall, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	notifier.AssertExpectations(t)
	assert.False(t, runner.Submit(FollowUpJob{}))
}

func TestFollowUpRecordsRuleLabel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.rules.Add(ctx, &models.PrefixRule{Pattern: "+9198", MatchType: models.MatchPrefix, Action: models.RuleBlock, Label: "Telemarketing range"}))

	runner := NewFollowUpRunner(&config.FollowUpConfig{Workers: 1, QueueSize: 4, Timeout: time.Second}, FollowUpDeps{
		History:  h.history,
		Settings: h.settings,
	}, nil, zap.NewNop())
	runner.Start()

	pipeline := NewPipeline(h.deps(t), testThresholds, BehaviorOff, nil, zap.NewNop())
	e := NewEngine(h.hasher, pipeline, runner, time.Second, nil, zap.NewNop())
	d := e.Screen(ctx, number(spamNumber))
	assert.Equal(t, models.ActionReject, d.Action)
	assert.Equal(t, "Telemarketing range", d.Label)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(stopCtx))

	records, err := h.history.Recent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Telemarketing range", records[0].Label)
	assert.Equal(t, models.SourcePrefixRule, records[0].Source)
}

func TestFollowUpQueueFullDrops(t *testing.T) {
	runner := NewFollowUpRunner(&config.FollowUpConfig{Workers: 1, QueueSize: 1, Timeout: time.Second},
		FollowUpDeps{Notifier: notify.NewLogNotifier(zap.NewNop())}, nil, zap.NewNop())

	// Not started: the queue holds exactly one job
	assert.True(t, runner.Submit(FollowUpJob{Decision: models.Allow(models.SourceDefault)}))
	assert.False(t, runner.Submit(FollowUpJob{Decision: models.Allow(models.SourceDefault)}))
}
