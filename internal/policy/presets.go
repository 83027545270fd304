package policy

import (
	"errors"
	"fmt"

	"call-screener/internal/models"
)

// ErrUnknownPreset is returned for preset names without defaults
var ErrUnknownPreset = errors.New("unknown policy preset")

// ApplyPreset returns the defaults of a named preset. Custom has no defaults.
func ApplyPreset(name models.PolicyPreset) (models.AdvancedBlockingPolicy, error) {
	p, ok := models.PresetPolicy(name)
	if !ok {
		return models.AdvancedBlockingPolicy{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}
