package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liut/medilink/pkg/models/consult"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	r := consult.DefaultPreset().Placeholder.Summary(&consult.Result{Diagnosis: "Viral syndrome"})
	printSummary(&buf, r, false)
	out := buf.String()
	assert.Contains(t, out, "Diagnosis: Viral syndrome")
	assert.Contains(t, out, "  - Rest and hydration")
	assert.Contains(t, out, "Interactions: none detected")

	buf.Reset()
	printSummary(&buf, consult.Result{Interactions: []string{"warfarin + aspirin"}}, true)
	assert.Contains(t, buf.String(), "  - warfarin + aspirin")
}
