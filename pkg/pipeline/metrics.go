package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/researchportal/resultpipe/internal/build"
)

var (
	invocationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "pipeline_invocations_total",
		Help:      "The total number of pipeline invocations by entry point and outcome.",
	}, []string{"entrypoint", "outcome"})

	classificationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "result_classification_total",
		Help:      "The total number of classified query results by kind.",
	}, []string{"kind"})

	recordsFlattenedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "records_flattened_total",
		Help:      "The total number of records flattened.",
	})

	recordsSkippedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "records_skipped_total",
		Help:      "The total number of malformed records dropped under the skip policy.",
	})

	outputTablesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "output_tables_total",
		Help:      "The total number of tables returned.",
	})

	exchangeDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace:                       build.ProjectName,
		Name:                            "pseudonym_exchange_duration_ms",
		Help:                            "The duration (in ms) of a batched pseudonym exchange.",
		Buckets:                         []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: time.Hour,
	})

	processDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:                       build.ProjectName,
		Name:                            "pipeline_duration_ms",
		Help:                            "The duration (in ms) of a pipeline invocation.",
		Buckets:                         []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: time.Hour,
	}, []string{"entrypoint"})
)
