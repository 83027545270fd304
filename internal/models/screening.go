package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionAction is the handling applied to a screened call
type DecisionAction string

const (
	ActionAllow   DecisionAction = "allow"
	ActionSilence DecisionAction = "silence"
	ActionReject  DecisionAction = "reject"
	ActionFlag    DecisionAction = "flag"
)

// DecisionSource names the pipeline stage that produced a decision
type DecisionSource string

const (
	SourceHidden            DecisionSource = "hidden"
	SourceWhitelist         DecisionSource = "whitelist"
	SourceBlocklist         DecisionSource = "blocklist"
	SourcePrefixRule        DecisionSource = "prefix_rule"
	SourceNightGuard        DecisionSource = "night_guard"
	SourceContactsOnly      DecisionSource = "contacts_only"
	SourceSilenceUnknown    DecisionSource = "silence_unknown"
	SourceInternationalLock DecisionSource = "international_lock"
	SourceAutoEscalate      DecisionSource = "auto_escalate"
	SourceSeedDB            DecisionSource = "seed_db"
	SourceRemote            DecisionSource = "remote"
	SourceBehavioral        DecisionSource = "behavioral"
	SourceDefault           DecisionSource = "default"
	SourceFailOpen          DecisionSource = "fail_open"
)

// Decision is the outcome of screening one call. It is immutable once returned.
type Decision struct {
	Action   DecisionAction `json:"action"`
	Score    float64        `json:"score"`
	Category string         `json:"category,omitempty"`
	Source   DecisionSource `json:"source"`
	Label    string         `json:"label,omitempty"`
}

// Allow lets the call ring normally
func Allow(source DecisionSource) Decision {
	return Decision{Action: ActionAllow, Source: source}
}

// Silence lets the call arrive without ringing
func Silence(score float64, category string, source DecisionSource) Decision {
	return Decision{Action: ActionSilence, Score: score, Category: category, Source: source}
}

// Reject declines the call
func Reject(source DecisionSource) Decision {
	return Decision{Action: ActionReject, Score: 1.0, Source: source}
}

// Flag lets the call ring and surfaces a soft risk signal
func Flag(score float64, category string, source DecisionSource) Decision {
	return Decision{Action: ActionFlag, Score: score, Category: category, Source: source}
}

// Rings reports whether the call reaches the device at all
func (d Decision) Rings() bool {
	return d.Action != ActionReject
}

// CallerIdentity is computed per call and never persisted.
// Empty NormalizedE164 / NumberHash mean the identifier is undefined.
type CallerIdentity struct {
	RawNumberPresent bool   `json:"raw_number_present"`
	NormalizedE164   string `json:"-"`
	NumberHash       string `json:"number_hash,omitempty"`
}

// HasHash reports whether a usable identifier exists
func (c CallerIdentity) HasHash() bool {
	return c.NumberHash != ""
}

// ReputationSource identifies where a reputation result came from
type ReputationSource string

const (
	ReputationSeedDB   ReputationSource = "seed_db"
	ReputationRemote   ReputationSource = "remote"
	ReputationNotFound ReputationSource = "not_found"
)

// ReputationResult is produced per lookup and not cached beyond it
type ReputationResult struct {
	ConfidenceScore float64          `json:"confidence_score"`
	Category        string           `json:"category,omitempty"`
	ReportCount     int              `json:"report_count"`
	UniqueReporters int              `json:"unique_reporters"`
	Source          ReputationSource `json:"source"`
}

// NotFoundReputation is the fail-safe result
func NotFoundReputation() ReputationResult {
	return ReputationResult{Source: ReputationNotFound}
}

// SeedEntry is one row of the curated seed snapshot
type SeedEntry struct {
	NumberHash      string  `json:"number_hash" db:"number_hash"`
	ConfidenceScore float64 `json:"confidence_score" db:"confidence_score"`
	Category        string  `json:"category" db:"category"`
}

// ListEntry is a whitelist, blocklist or contact entry keyed by number hash
type ListEntry struct {
	ID           uuid.UUID `json:"id" db:"id"`
	NumberHash   string    `json:"number_hash" db:"number_hash"`
	DisplayLabel string    `json:"display_label" db:"display_label"`
	AddedAt      time.Time `json:"added_at" db:"added_at"`
}

// MatchType selects the prefix rule predicate
type MatchType string

const (
	MatchPrefix   MatchType = "prefix"
	MatchSuffix   MatchType = "suffix"
	MatchContains MatchType = "contains"
)

// RuleAction is what a matching prefix rule does
type RuleAction string

const (
	RuleBlock   RuleAction = "block"
	RuleSilence RuleAction = "silence"
	RuleAllow   RuleAction = "allow"
)

// PrefixRule is a user-defined pattern rule over E.164 numbers
type PrefixRule struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Pattern   string     `json:"pattern" db:"pattern"`
	MatchType MatchType  `json:"match_type" db:"match_type"`
	Action    RuleAction `json:"action" db:"action"`
	Label     string     `json:"label" db:"label"`
	AddedAt   time.Time  `json:"added_at" db:"added_at"`
}

// Valid checks the rule's enumerations and pattern
func (r *PrefixRule) Valid() bool {
	if r.Pattern == "" {
		return false
	}
	switch r.MatchType {
	case MatchPrefix, MatchSuffix, MatchContains:
	default:
		return false
	}
	switch r.Action {
	case RuleBlock, RuleSilence, RuleAllow:
	default:
		return false
	}
	return true
}

// CallerEventType is the kind of behavioral event captured for a caller
type CallerEventType string

const (
	EventIncomingCall CallerEventType = "incoming_call"
	EventShortRing    CallerEventType = "short_ring"
)

// CallerEvent is an append-only behavioral record
type CallerEvent struct {
	NumberHash string          `json:"number_hash"`
	EventType  CallerEventType `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Settings are the user-facing screening toggles
type Settings struct {
	AutoBlockHighConfidence bool `json:"auto_block_high_confidence"`
	BlockHiddenNumbers      bool `json:"block_hidden_numbers"`
	NotifyOnReject          bool `json:"notify_on_reject"`
	NotifyOnSilence         bool `json:"notify_on_silence"`
	NotifyOnFlag            bool `json:"notify_on_flag"`
	NotifyOnNightGuard      bool `json:"notify_on_night_guard"`
}

// DefaultSettings returns the settings of a fresh installation
func DefaultSettings() Settings {
	return Settings{
		NotifyOnReject: true,
		NotifyOnFlag:   true,
	}
}

// ShouldNotify reports whether a decision warrants a notification under these settings
func (s Settings) ShouldNotify(d Decision) bool {
	switch d.Action {
	case ActionReject:
		return s.NotifyOnReject
	case ActionSilence:
		if d.Source == SourceNightGuard {
			return s.NotifyOnNightGuard
		}
		return s.NotifyOnSilence
	case ActionFlag:
		return s.NotifyOnFlag
	}
	return false
}

// HistoryRecord is one screened call as written to the history sink
type HistoryRecord struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	NumberHash string         `json:"number_hash" db:"number_hash"`
	Label      string         `json:"label" db:"label"`
	Action     DecisionAction `json:"action" db:"action"`
	Score      float64        `json:"score" db:"score"`
	Category   string         `json:"category" db:"category"`
	Source     DecisionSource `json:"source" db:"source"`
	RecordedAt time.Time      `json:"recorded_at" db:"recorded_at"`
}

// Notification is the hash-only payload published after a decision
type Notification struct {
	ID         uuid.UUID      `json:"id"`
	NumberHash string         `json:"number_hash,omitempty"`
	Action     DecisionAction `json:"action"`
	Source     DecisionSource `json:"source"`
	Category   string         `json:"category,omitempty"`
	Score      float64        `json:"score"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ListKind names one of the hash membership lists
type ListKind string

const (
	ListWhitelist ListKind = "whitelist"
	ListBlocklist ListKind = "blocklist"
	ListContacts  ListKind = "contacts"
)

// Valid reports whether k is a known list
func (k ListKind) Valid() bool {
	switch k {
	case ListWhitelist, ListBlocklist, ListContacts:
		return true
	}
	return false
}

// SettingsDocument is the persisted settings row
type SettingsDocument struct {
	Settings  Settings               `json:"settings"`
	Policy    AdvancedBlockingPolicy `json:"policy"`
	UpdatedAt time.Time              `json:"updated_at"`
}
