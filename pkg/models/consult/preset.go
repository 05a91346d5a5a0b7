package consult

import "time"

// Stage is one presentational status shown while an analysis is outstanding
type Stage struct {
	Text  string        `json:"text" yaml:"text"`
	After time.Duration `json:"after" yaml:"after"`
}

// Placeholder fills absent fields of a Result for display
type Placeholder struct {
	Diagnosis string   `json:"diagnosis,omitempty" yaml:"diagnosis,omitempty"`
	Rationale string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Actions   []string `json:"actions,omitempty" yaml:"actions,omitempty"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type Preset struct {
	IdleText    string       `json:"idleText,omitempty" yaml:"idleText,omitempty"`
	Stages      []Stage      `json:"stages,omitempty" yaml:"stages,omitempty"`
	Placeholder *Placeholder `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// DefaultPreset ...
func DefaultPreset() Preset {
	return Preset{
		IdleText: "Idle",
		Stages: []Stage{
			{Text: "Diagnostician Thinking..."},
			{Text: "Pharmacist Reviewing Drugs...", After: 2 * time.Second},
		},
		Placeholder: &Placeholder{
			Diagnosis: "Preliminary Finding",
			Rationale: "AI analysis of symptoms suggests this condition based on clinical guidelines.",
			Actions: []string{
				"Immediate follow-up with specialist",
				"Blood panel (CBC, Metabolic)",
				"Rest and hydration",
			},
			Warnings: []string{
				"Seek immediate care if shortness of breath persists",
				"Avoid strenuous activity",
				"Monitor temperature",
			},
		},
	}
}

// Merge fills the zero members of z from d
func (z Preset) Merge(d Preset) Preset {
	if z.IdleText == "" {
		z.IdleText = d.IdleText
	}
	if len(z.Stages) == 0 {
		z.Stages = d.Stages
	}
	if z.Placeholder == nil {
		z.Placeholder = d.Placeholder
	}
	return z
}

// Summary returns a copy of r with placeholders in the absent fields.
// Interactions are never filled, an empty list means none were found.
func (z *Placeholder) Summary(r *Result) Result {
	var out Result
	if r != nil {
		out = *r
	}
	if z == nil {
		return out
	}
	if out.Diagnosis == "" {
		out.Diagnosis = z.Diagnosis
	}
	if out.Rationale == "" {
		out.Rationale = z.Rationale
	}
	if out.Actions == nil {
		out.Actions = z.Actions
	}
	if out.Warnings == nil {
		out.Warnings = z.Warnings
	}
	return out
}
