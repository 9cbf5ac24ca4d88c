package sim

import (
	"fmt"
	"sort"
)

var presets = map[string]Scripted{
	"safety": {
		PerTurn: []string{ActionSafety, ActionPublish},
		Choices: map[string]string{EventFundingOffer: ChoiceAccept, EventBreakthrough: ChoiceSuppress},
	},
	"growth": {
		PerTurn: []string{ActionHire, ActionCompute},
		Choices: map[string]string{EventFundingOffer: ChoiceAccept, EventBreakthrough: ChoicePublish},
	},
	"balanced": {
		PerTurn: []string{ActionSafety, ActionHire, ActionFundraise},
		Choices: map[string]string{EventFundingOffer: ChoiceAccept, EventBreakthrough: ChoiceSuppress},
	},
	"lobby": {
		PerTurn: []string{ActionLobby, ActionFundraise},
		Choices: map[string]string{EventFundingOffer: ChoiceDecline},
	},
}

// Preset returns a named scripted strategy.
func Preset(name string) (Strategy, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have %v)", name, PresetNames())
	}
	return p, nil
}

// PresetNames lists the preset strategies in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
