package wordlist

// Preset is a named wordlist choice. A preset with no File expects the
// caller to supply a custom wordlist.
type Preset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	File string `json:"filename,omitempty"`
}

var presets = []Preset{
	{ID: "1", Name: "top1k", File: "top1k.txt"},
	{ID: "2", Name: "top10k", File: "top10k.txt"},
	{ID: "3", Name: "top25k", File: "top25k.txt"},
	{ID: "4", Name: "top50k", File: "top50k.txt"},
	{ID: "5", Name: "top100k", File: "top100k.txt"},
	{ID: "6", Name: "custom"},
}

var presetsByID = func() map[string]Preset {
	m := make(map[string]Preset, len(presets))
	for _, p := range presets {
		m[p.ID] = p
	}
	return m
}()

// Presets returns the preset table in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// Lookup returns the preset with the given id. Unknown ids fall back to the
// first preset.
func Lookup(id string) Preset {
	if p, ok := presetsByID[id]; ok {
		return p
	}
	return presets[0]
}
