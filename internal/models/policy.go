package models

// PolicyPreset names a bundle of advanced blocking defaults
type PolicyPreset string

const (
	PresetDefault  PolicyPreset = "default"
	PresetBalanced PolicyPreset = "balanced"
	PresetStrict   PolicyPreset = "strict"
	PresetCustom   PolicyPreset = "custom"
)

// NightGuardAction is applied by the night guard rule
type NightGuardAction string

const (
	NightGuardSilence NightGuardAction = "silence"
	NightGuardReject  NightGuardAction = "reject"
)

// AdvancedBlockingPolicy is the single active policy record of an installation
type AdvancedBlockingPolicy struct {
	Preset                PolicyPreset     `json:"preset"`
	NightGuardEnabled     bool             `json:"night_guard_enabled"`
	NightGuardStartHour   int              `json:"night_guard_start_hour"`
	NightGuardEndHour     int              `json:"night_guard_end_hour"`
	NightGuardAction      NightGuardAction `json:"night_guard_action"`
	AllowContactsOnly     bool             `json:"allow_contacts_only"`
	SilenceUnknownNumbers bool             `json:"silence_unknown_numbers"`
	BlockInternational    bool             `json:"block_international"`
	AutoEscalateEnabled   bool             `json:"auto_escalate_enabled"`
	AutoEscalateThreshold int              `json:"auto_escalate_threshold"`
}

var presetDefaults = map[PolicyPreset]AdvancedBlockingPolicy{
	PresetDefault: {
		Preset:                PresetDefault,
		NightGuardStartHour:   22,
		NightGuardEndHour:     7,
		NightGuardAction:      NightGuardSilence,
		AutoEscalateThreshold: 3,
	},
	PresetBalanced: {
		Preset:                PresetBalanced,
		NightGuardEnabled:     true,
		NightGuardStartHour:   22,
		NightGuardEndHour:     7,
		NightGuardAction:      NightGuardSilence,
		SilenceUnknownNumbers: true,
		AutoEscalateEnabled:   true,
		AutoEscalateThreshold: 3,
	},
	PresetStrict: {
		Preset:                PresetStrict,
		NightGuardEnabled:     true,
		NightGuardStartHour:   21,
		NightGuardEndHour:     8,
		NightGuardAction:      NightGuardReject,
		AllowContactsOnly:     true,
		BlockInternational:    true,
		AutoEscalateEnabled:   true,
		AutoEscalateThreshold: 2,
	},
}

// PresetPolicy returns the defaults of a named preset
func PresetPolicy(preset PolicyPreset) (AdvancedBlockingPolicy, bool) {
	p, ok := presetDefaults[preset]
	return p, ok
}

// DefaultPolicy is the policy of a fresh installation
func DefaultPolicy() AdvancedBlockingPolicy {
	return presetDefaults[PresetDefault]
}

// sameToggles compares every field except Preset
func sameToggles(a, b AdvancedBlockingPolicy) bool {
	a.Preset, b.Preset = "", ""
	return a == b
}

// DerivePreset returns the named preset whose defaults equal p, or PresetCustom
func DerivePreset(p AdvancedBlockingPolicy) PolicyPreset {
	// Prefer the preset already recorded when it still matches
	if named, ok := presetDefaults[p.Preset]; ok && sameToggles(named, p) {
		return p.Preset
	}
	for _, name := range []PolicyPreset{PresetDefault, PresetBalanced, PresetStrict} {
		if sameToggles(presetDefaults[name], p) {
			return name
		}
	}
	return PresetCustom
}

// Normalized returns p with Preset recomputed from its toggles
func (p AdvancedBlockingPolicy) Normalized() AdvancedBlockingPolicy {
	p.Preset = DerivePreset(p)
	return p
}

// IsUnmodifiedDefault reports whether the evaluator can take its fast path
func (p AdvancedBlockingPolicy) IsUnmodifiedDefault() bool {
	return p.Preset == PresetDefault && sameToggles(presetDefaults[PresetDefault], p)
}

// Validate checks hour ranges and enumerations
func (p AdvancedBlockingPolicy) Validate() bool {
	if p.NightGuardStartHour < 0 || p.NightGuardStartHour > 23 {
		return false
	}
	if p.NightGuardEndHour < 0 || p.NightGuardEndHour > 23 {
		return false
	}
	switch p.NightGuardAction {
	case NightGuardSilence, NightGuardReject:
	default:
		return false
	}
	if p.AutoEscalateEnabled && p.AutoEscalateThreshold < 1 {
		return false
	}
	return true
}
