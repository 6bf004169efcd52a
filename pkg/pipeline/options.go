package pipeline

import (
	"github.com/researchportal/resultpipe/pkg/logger"
	"github.com/researchportal/resultpipe/pkg/privacy"
	"github.com/researchportal/resultpipe/pkg/pseudonym"
	"github.com/researchportal/resultpipe/pkg/queryengine"
	"github.com/researchportal/resultpipe/pkg/template"
)

// MalformedRecordPolicy decides what happens to a record whose structure contradicts its
// template schema.
type MalformedRecordPolicy string

const (
	// MalformedRecordFail fails the whole invocation.
	MalformedRecordFail MalformedRecordPolicy = "fail"
	// MalformedRecordSkip drops the record from its table and logs a warning.
	MalformedRecordSkip MalformedRecordPolicy = "skip"
)

func (p MalformedRecordPolicy) Valid() bool {
	return p == MalformedRecordFail || p == MalformedRecordSkip
}

type Option func(p *Pipeline)

func WithQueryEngine(engine queryengine.Engine) Option {
	return func(p *Pipeline) {
		p.engine = engine
	}
}

func WithTemplateRegistry(registry template.Registry) Option {
	return func(p *Pipeline) {
		p.registry = registry
	}
}

func WithExchanger(exchanger pseudonym.Exchanger) Option {
	return func(p *Pipeline) {
		p.exchanger = exchanger
	}
}

// WithBlacklist sets the path blacklist. Without it every result is withheld.
func WithBlacklist(blacklist privacy.PathBlacklist) Option {
	return func(p *Pipeline) {
		p.blacklist = blacklist
	}
}

func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithIdentifierPath sets the path that column 0 of every query result must carry.
func WithIdentifierPath(path string) Option {
	return func(p *Pipeline) {
		p.identifierPath = path
	}
}

func WithMalformedRecordPolicy(policy MalformedRecordPolicy) Option {
	return func(p *Pipeline) {
		p.malformedRecordPolicy = policy
	}
}

// WithMinRowCount withholds results with fewer distinct identifiers than n. Zero disables
// the check.
func WithMinRowCount(n int) Option {
	return func(p *Pipeline) {
		p.minRowCount = n
	}
}
