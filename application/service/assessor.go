package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/infrastructure/provider"
)

// Complexity levels of an assessment.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// Assessment is the model's judgement of whether a ticket can be answered
// with SQL against the known schema.
type Assessment struct {
	Feasible           bool     `json:"feasible" description:"Whether the schema holds the data the ticket asks for"`
	Confidence         float64  `json:"confidence" description:"Confidence between 0 and 1"`
	Complexity         string   `json:"complexity" enum:"simple,moderate,complex" description:"Expected query complexity"`
	Reasoning          string   `json:"reasoning" description:"Short justification"`
	RequiredTables     []string `json:"required_tables" description:"Tables a query would read"`
	MissingInformation []string `json:"missing_information" description:"Details the ticket must add; empty when none"`
}

// Assessor judges ticket feasibility.
type Assessor struct {
	model  structuredModel
	schema *schema.Store
	logger *slog.Logger
}

// NewAssessor creates an Assessor.
func NewAssessor(llm provider.TextGenerator, store *schema.Store, settings ModelSettings, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		model:  structuredModel{llm: llm, settings: settings},
		schema: store,
		logger: logger,
	}
}

// Assess asks the model about ticketText. Required tables missing from the
// schema are removed and reported as missing information.
func (a *Assessor) Assess(ctx context.Context, ticketText string) (Assessment, error) {
	if a.model.llm == nil {
		return Assessment{}, fmt.Errorf("%w: %w", ErrGenerationFailed, provider.ErrUnsupportedOperation)
	}

	var columns []schema.Column
	if a.schema != nil {
		columns = a.schema.FetchSchema(ctx)
	}

	var out Assessment
	prompt := assessorPrompt(ticketText, schema.FullSummary(columns))
	if err := a.model.call(ctx, assessmentSchema, assessorSystem, prompt, &out); err != nil {
		return Assessment{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return normalizeAssessment(out, schema.Tables(columns)), nil
}

func normalizeAssessment(a Assessment, known []string) Assessment {
	a.Confidence = max(0, min(1, a.Confidence))

	switch strings.ToLower(strings.TrimSpace(a.Complexity)) {
	case ComplexitySimple:
		a.Complexity = ComplexitySimple
	case ComplexityComplex:
		a.Complexity = ComplexityComplex
	default:
		a.Complexity = ComplexityModerate
	}

	required := make([]string, 0, len(a.RequiredTables))
	missing := make([]string, 0, len(a.MissingInformation))
	for _, m := range a.MissingInformation {
		if strings.TrimSpace(m) != "" {
			missing = append(missing, m)
		}
	}
	for _, t := range a.RequiredTables {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(required, t) {
			continue
		}
		if slices.Contains(known, t) {
			required = append(required, t)
			continue
		}
		missing = append(missing, fmt.Sprintf("table %q is not in the schema", t))
	}
	a.RequiredTables = required
	a.MissingInformation = missing
	return a
}
