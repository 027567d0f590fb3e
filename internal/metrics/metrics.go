package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务指标
var (
	// DocumentsIngested 按结果计数的文档入库次数
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Name:      "documents_ingested_total",
		Help:      "Number of document ingestions by outcome.",
	}, []string{"outcome"})

	// ChunksIndexed 已写入向量索引的切片数
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Name:      "chunks_indexed_total",
		Help:      "Number of chunks written to the vector index.",
	})

	// QuestionsAnswered 按结果计数的问答次数
	QuestionsAnswered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Name:      "questions_answered_total",
		Help:      "Number of questions answered by outcome.",
	}, []string{"outcome"})

	// RetrievalDuration 检索耗时
	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docqa",
		Name:      "retrieval_duration_seconds",
		Help:      "Latency of embedding plus vector search per question.",
		Buckets:   prometheus.DefBuckets,
	})

	// GenerationDuration 回答生成耗时
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docqa",
		Name:      "generation_duration_seconds",
		Help:      "Latency of answer generation per question.",
		Buckets:   prometheus.DefBuckets,
	})
)

// 指标结果标签
const (
	OutcomeCompleted     = "completed"
	OutcomeFailed        = "failed"
	OutcomeAnswered      = "answered"
	OutcomeNoInformation = "no_information"
	OutcomeError         = "error"
)
