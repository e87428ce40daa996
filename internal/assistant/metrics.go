package assistant

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the assistant subsystem.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	RunLLMTime      *prometheus.HistogramVec
	RunToolTime     prometheus.Histogram
	RunTokensIn     prometheus.Histogram
	RunTokensOut    prometheus.Histogram
	RunToolCalls    prometheus.Histogram
	LLMCallsTotal   prometheus.Counter
	LLMTokensIn     prometheus.Counter
	LLMTokensOut    prometheus.Counter
	LLMDuration     prometheus.Histogram
	ToolCallsTotal  *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	ToolInputBytes  *prometheus.HistogramVec
	ToolOutputBytes *prometheus.HistogramVec
	AsksTotal       *prometheus.CounterVec
}

// NewMetrics registers and returns assistant metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdash_assistant_runs_total",
			Help: "Total assistant runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdash_assistant_run_duration_seconds",
			Help:    "Duration of assistant runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"status", "model"}),
		RunLLMTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdash_assistant_llm_time_seconds",
			Help:    "Total LLM time per assistant run in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"model"}),
		RunToolTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsdash_assistant_tool_time_seconds",
			Help:    "Total tool execution time per assistant run in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		RunTokensIn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsdash_assistant_tokens_input",
			Help:    "Input tokens consumed per assistant run.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12), // 100 .. ~409600
		}),
		RunTokensOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsdash_assistant_tokens_output",
			Help:    "Output tokens consumed per assistant run.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12), // 100 .. ~409600
		}),
		RunToolCalls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsdash_assistant_tool_calls",
			Help:    "Tool calls per assistant run.",
			Buckets: prometheus.LinearBuckets(0, 1, 16), // 0 .. 15
		}),
		LLMCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opsdash_llm_calls_total",
			Help: "Total LLM provider calls.",
		}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opsdash_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opsdash_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsdash_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdash_tool_calls_total",
			Help: "Total tool executions by tool name and status.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdash_tool_duration_seconds",
			Help:    "Duration of tool executions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 0.1s .. ~12.8s
		}, []string{"tool"}),
		ToolInputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdash_tool_input_bytes",
			Help:    "Size of tool input in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B .. ~1MB
		}, []string{"tool"}),
		ToolOutputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdash_tool_output_bytes",
			Help:    "Size of tool output in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B .. ~1MB
		}, []string{"tool"}),
		AsksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdash_assistant_asks_total",
			Help: "Total ask submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunLLMTime,
		m.RunToolTime,
		m.RunTokensIn,
		m.RunTokensOut,
		m.RunToolCalls,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.ToolCallsTotal,
		m.ToolDuration,
		m.ToolInputBytes,
		m.ToolOutputBytes,
		m.AsksTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnLLMCall: func(inputTokens, outputTokens int, duration float64) {
			m.LLMCallsTotal.Inc()
			m.LLMTokensIn.Add(float64(inputTokens))
			m.LLMTokensOut.Add(float64(outputTokens))
			m.LLMDuration.Observe(duration)
		},
		OnToolCall: func(name string, duration float64, inputBytes, outputBytes int, isError bool) {
			status := "success"
			if isError {
				status = "error"
			}
			m.ToolCallsTotal.WithLabelValues(name, status).Inc()
			m.ToolDuration.WithLabelValues(name).Observe(duration)
			m.ToolInputBytes.WithLabelValues(name).Observe(float64(inputBytes))
			m.ToolOutputBytes.WithLabelValues(name).Observe(float64(outputBytes))
		},
		OnComplete: func(e *CompleteEvent) {
			m.RunsTotal.WithLabelValues(string(e.Status)).Inc()
			m.RunDuration.WithLabelValues(string(e.Status), e.Model).Observe(e.Duration)
			m.RunLLMTime.WithLabelValues(e.Model).Observe(e.LLMTime)
			m.RunToolTime.Observe(e.ToolTime)
			m.RunTokensIn.Observe(float64(e.TokensIn))
			m.RunTokensOut.Observe(float64(e.TokensOut))
			m.RunToolCalls.Observe(float64(e.ToolCalls))
		},
	}
}
