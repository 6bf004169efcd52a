// Package pipeline post-processes clinical query results into flat, pseudonymized and
// privacy-filtered tables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/researchportal/resultpipe/internal/classifier"
	"github.com/researchportal/resultpipe/internal/flatten"
	"github.com/researchportal/resultpipe/internal/identifier"
	"github.com/researchportal/resultpipe/internal/unify"
	"github.com/researchportal/resultpipe/pkg/logger"
	"github.com/researchportal/resultpipe/pkg/privacy"
	"github.com/researchportal/resultpipe/pkg/pseudonym"
	"github.com/researchportal/resultpipe/pkg/queryengine"
	"github.com/researchportal/resultpipe/pkg/table"
	"github.com/researchportal/resultpipe/pkg/telemetry"
	"github.com/researchportal/resultpipe/pkg/template"

	pipelineErrors "github.com/researchportal/resultpipe/pkg/errors"
)

var tracer = otel.Tracer("resultpipe/pkg/pipeline")

// PseudonymColumn is prepended to every output table when a project scope is supplied.
var PseudonymColumn = table.Column{Name: "pseudonym", Path: "pseudonym"}

// Request is one query to execute and post-process.
type Request struct {
	Query      string
	Parameters map[string]any

	// ProjectScope selects the pseudonym namespace. When empty no pseudonyms are exchanged and
	// no pseudonym column is added.
	ProjectScope string
}

// Pipeline sequences the post-processing stages. It holds no per-request state and is safe
// for concurrent use.
type Pipeline struct {
	engine    queryengine.Engine
	registry  template.Registry
	exchanger pseudonym.Exchanger
	blacklist privacy.PathBlacklist
	logger    logger.Logger

	flattener             *flatten.Flattener
	identifierPath        string
	malformedRecordPolicy MalformedRecordPolicy
	minRowCount           int
}

func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		blacklist:             privacy.Unavailable(),
		logger:                logger.NewNoopLogger(),
		identifierPath:        identifier.DefaultPath,
		malformedRecordPolicy: MalformedRecordFail,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.registry == nil {
		return nil, errors.New("a template registry is required")
	}
	if p.identifierPath == "" {
		return nil, errors.New("identifier path must not be empty")
	}
	if !p.malformedRecordPolicy.Valid() {
		return nil, fmt.Errorf("unknown malformed record policy '%s'", p.malformedRecordPolicy)
	}
	if p.minRowCount < 0 {
		return nil, fmt.Errorf("minimum row count must be >= 0, got %d", p.minRowCount)
	}

	if !p.blacklist.Available() {
		p.logger.Warn("path blacklist is unavailable, every result will be withheld")
	}

	p.flattener = flatten.New(p.registry)
	return p, nil
}

// Execute runs the query with the identifier column requested and post-processes the result.
// Returned errors are InternalErrors whose message is safe to show to end users.
func (p *Pipeline) Execute(ctx context.Context, req Request) ([]*table.Table, error) {
	ctx, finish := p.begin(ctx, "execute", req.ProjectScope)

	tables, err := p.execute(ctx, req)
	if err = finish(err); err != nil {
		return nil, err
	}
	return tables, nil
}

// Process post-processes a query result that was requested with the identifier column.
// Returned errors are InternalErrors whose message is safe to show to end users.
func (p *Pipeline) Process(ctx context.Context, result *table.Table, projectScope string) ([]*table.Table, error) {
	ctx, finish := p.begin(ctx, "process", projectScope)

	tables, err := p.process(ctx, result, projectScope)
	if err = finish(err); err != nil {
		return nil, err
	}
	return tables, nil
}

// begin attaches the request scope and the invocation span to ctx. The returned function ends
// the span, records the outcome and converts err with HandleError.
func (p *Pipeline) begin(ctx context.Context, entrypoint, projectScope string) (context.Context, func(error) error) {
	scope, ok := logger.RequestScopeFromContext(ctx)
	if !ok {
		scope = logger.RequestScope{RequestID: uuid.NewString()}
	}
	scope.ProjectScope = projectScope
	ctx = logger.ContextWithRequestScope(ctx, scope)

	ctx, span := tracer.Start(ctx, "pipeline."+entrypoint, trace.WithAttributes(
		telemetry.RequestIDKey.String(scope.RequestID),
		attribute.Bool("pseudonymized", projectScope != ""),
	))
	start := time.Now()

	return ctx, func(err error) error {
		defer span.End()
		processDurationHistogram.WithLabelValues(entrypoint).Observe(float64(time.Since(start).Milliseconds()))

		if err == nil {
			invocationsCounter.WithLabelValues(entrypoint, "success").Inc()
			return nil
		}

		telemetry.TraceError(span, err)
		invocationsCounter.WithLabelValues(entrypoint, outcome(err)).Inc()

		handled := pipelineErrors.HandleError(err)
		if errors.Is(err, pipelineErrors.ErrPrivacyThreshold) {
			p.logger.InfoWithContext(ctx, "result withheld", zap.Error(err))
		} else {
			p.logger.ErrorWithContext(ctx, "result processing failed", zap.Error(err))
		}
		return handled
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, pipelineErrors.ErrPrivacyThreshold):
		return "withheld"
	case errors.Is(err, pipelineErrors.ErrContractViolation):
		return "contract_violation"
	case errors.Is(err, pipelineErrors.ErrTemplateMissing), errors.Is(err, pipelineErrors.ErrTemplateUnresolved):
		return "template_error"
	case errors.Is(err, pipelineErrors.ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, pipelineErrors.ErrPseudonymExchange):
		return "pseudonym_exchange_error"
	}
	return "error"
}

func (p *Pipeline) execute(ctx context.Context, req Request) ([]*table.Table, error) {
	if p.engine == nil {
		return nil, errors.New("no query engine configured")
	}

	stageCtx, span := telemetry.StartStage(ctx, tracer, "query")
	result, err := p.engine.Execute(stageCtx, queryengine.Query{
		AQL:              req.Query,
		Parameters:       req.Parameters,
		SelectIdentifier: true,
	})
	if err != nil {
		telemetry.TraceError(span, err)
		span.End()
		return nil, fmt.Errorf("query engine: %w", err)
	}
	span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.process(ctx, result, req.ProjectScope)
}

// output is one table under construction. origins[r] is the row of the query result that row
// r was produced from.
type output struct {
	table   *table.Table
	origins []int
}

func (p *Pipeline) process(ctx context.Context, result *table.Table, projectScope string) ([]*table.Table, error) {
	if result == nil {
		return nil, pipelineErrors.MissingData("no result")
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	ids, data, err := identifier.Extract(result, p.identifierPath)
	if err != nil {
		return nil, err
	}

	if p.minRowCount > 0 {
		if distinct := privacy.DistinctIdentifiers(ids); distinct < p.minRowCount {
			return nil, fmt.Errorf("%w: %d distinct identifiers, at least %d required",
				pipelineErrors.ErrPrivacyThreshold, distinct, p.minRowCount)
		}
	}

	if !p.blacklist.Available() {
		p.logger.WarnWithContext(ctx, "path blacklist unavailable, result withheld")
		return privacy.Filter(p.blacklist, nil)
	}

	outputs, err := p.tabulate(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if projectScope != "" {
		if outputs, err = p.pseudonymize(ctx, outputs, ids, projectScope); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	tables := make([]*table.Table, len(outputs))
	for i, o := range outputs {
		tables[i] = o.table
	}

	filtered, err := privacy.Filter(p.blacklist, tables)
	if err != nil {
		return nil, err
	}

	outputTablesCounter.Add(float64(len(filtered)))
	return filtered, nil
}

// tabulate classifies the identifier-stripped result and builds the output tables.
func (p *Pipeline) tabulate(ctx context.Context, data *table.Table) ([]output, error) {
	ctx, span := telemetry.StartStage(ctx, tracer, "tabulate")
	defer span.End()

	classification := classifier.Classify(data)
	classificationCounter.WithLabelValues(classification.Kind.String()).Inc()
	span.SetAttributes(attribute.String("classification", classification.Kind.String()))

	if classification.Kind == classifier.Mixed {
		origins := make([]int, data.Len())
		for i := range origins {
			origins[i] = i
		}
		return []output{{table: classification.Table, origins: origins}}, nil
	}

	outputs := make([]output, 0, len(classification.Buckets))
	labels := make(map[string]struct{}, len(classification.Buckets))
	for _, bucket := range classification.Buckets {
		o, err := p.flattenBucket(ctx, bucket, labels)
		if err != nil {
			telemetry.TraceError(span, err)
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, nil
}

func (p *Pipeline) flattenBucket(ctx context.Context, bucket classifier.Bucket, labels map[string]struct{}) (output, error) {
	records := make([]*flatten.Record, 0, len(bucket.Records))
	origins := make([]int, 0, len(bucket.Records))

	for i, rec := range bucket.Records {
		row := bucket.Rows[i]

		flat, err := p.flattener.Flatten(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, pipelineErrors.ErrTemplateMissing):
			return output{}, pipelineErrors.TemplateMissing(bucket.Column.Name, row)
		case errors.Is(err, pipelineErrors.ErrMalformedRecord) && p.malformedRecordPolicy == MalformedRecordSkip:
			templateID, _ := rec.TemplateID()
			p.logger.WarnWithContext(ctx, "skipping malformed record",
				zap.String("column", bucket.Column.Name),
				zap.Int("row", row),
				zap.String("template_id", templateID))
			recordsSkippedCounter.Inc()
			continue
		default:
			return output{}, fmt.Errorf("column '%s', row %d: %w", bucket.Column.Name, row, err)
		}

		recordsFlattenedCounter.Inc()
		records = append(records, flat)
		origins = append(origins, row)
	}

	t, err := unify.Unify(records, label(bucket.Column, records, labels))
	if err != nil {
		return output{}, err
	}
	return output{table: t, origins: origins}, nil
}

// label names a bucket's table after the template its records share, or after its column when
// the templates differ. A label already taken gets the column name appended.
func label(column table.Column, records []*flatten.Record, used map[string]struct{}) string {
	name := column.Name
	if len(records) > 0 {
		name = records[0].TemplateID
		for _, r := range records[1:] {
			if r.TemplateID != name {
				name = column.Name
				break
			}
		}
	}

	if _, taken := used[name]; taken {
		base := fmt.Sprintf("%s (%s)", name, column.Name)
		name = base
		for n := 2; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = fmt.Sprintf("%s %d", base, n)
		}
	}
	used[name] = struct{}{}
	return name
}

// pseudonymize exchanges all identifiers in one call and prepends the pseudonym of each row's
// source identifier to every table.
func (p *Pipeline) pseudonymize(ctx context.Context, outputs []output, ids table.IdentifierList, projectScope string) ([]output, error) {
	if p.exchanger == nil {
		return nil, pipelineErrors.PseudonymExchange("no pseudonym exchanger configured")
	}

	ctx, span := telemetry.StartStage(ctx, tracer, "pseudonymize", attribute.Int("identifiers", len(ids)))
	defer span.End()

	start := time.Now()
	pseudonyms, err := p.exchanger.Exchange(ctx, ids, projectScope)
	exchangeDurationHistogram.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		telemetry.TraceError(span, err)
		if errors.Is(err, pipelineErrors.ErrPseudonymExchange) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", pipelineErrors.ErrPseudonymExchange, err)
	}
	if len(pseudonyms) != len(ids) {
		err := pipelineErrors.PseudonymExchange("expected %d pseudonyms, got %d", len(ids), len(pseudonyms))
		telemetry.TraceError(span, err)
		return nil, err
	}

	out := make([]output, len(outputs))
	for i, o := range outputs {
		cells := make([]table.Cell, len(o.origins))
		for r, origin := range o.origins {
			if psn := pseudonyms[origin]; psn != nil {
				cells[r] = table.Scalar(*psn)
			} else {
				cells[r] = table.Null()
			}
		}

		t, err := o.table.PrependColumn(PseudonymColumn, cells)
		if err != nil {
			return nil, err
		}
		out[i] = output{table: t, origins: o.origins}
	}
	return out, nil
}
