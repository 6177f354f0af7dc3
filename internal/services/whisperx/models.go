package whisperx

import "strings"

// Model is a WhisperX model with the memory it needs to load and run.
type Model struct {
	Name     string
	MemoryMB uint64
}

// catalog is ordered from smallest to largest memory footprint.
var catalog = []Model{
	{Name: "tiny", MemoryMB: 1000},
	{Name: "base", MemoryMB: 1000},
	{Name: "small", MemoryMB: 2000},
	{Name: "medium", MemoryMB: 5000},
	{Name: "large-v3-turbo", MemoryMB: 6000},
	{Name: "large-v2", MemoryMB: 10000},
	{Name: "large-v3", MemoryMB: 10000},
}

// Catalog returns the known models ordered by memory need, smallest first.
func Catalog() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel finds a catalog entry by name. "large" is an alias for large-v3.
func LookupModel(name string) (Model, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "large" {
		name = "large-v3"
	}
	for _, m := range catalog {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// SmallerModels returns catalog models that need strictly less memory than
// name, largest first. Unknown names yield the whole catalog, largest first.
func SmallerModels(name string) []Model {
	limit := ^uint64(0)
	if m, ok := LookupModel(name); ok {
		limit = m.MemoryMB
	}
	var out []Model
	for i := len(catalog) - 1; i >= 0; i-- {
		if catalog[i].MemoryMB < limit {
			out = append(out, catalog[i])
		}
	}
	return out
}

// Ladder returns name followed by every smaller model, the order the
// transcription stage falls back through when memory runs out.
func Ladder(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultModel
	}
	out := []string{name}
	for _, m := range SmallerModels(name) {
		out = append(out, m.Name)
	}
	return out
}
