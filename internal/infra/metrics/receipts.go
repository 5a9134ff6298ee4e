package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		receiptFieldsMatchedTotal,
		receiptsProcessedTotal,
		receiptConfirmationsTotal,
		suggestionsReceivedTotal,
	)
}

var (
	receiptFieldsMatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_fields_matched_total",
			Help: "Receipt fields recognized, per field label.",
		},
		[]string{"field"},
	)

	receiptsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipts_processed_total",
			Help: "Receipt photos by outcome (ok, no_fields, ocr_failed, download_failed).",
		},
		[]string{"outcome"},
	)

	receiptConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_confirmations_total",
			Help: "Answers to the confirmation prompt (yes, no, unknown).",
		},
		[]string{"answer"},
	)

	suggestionsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "suggestions_received_total",
			Help: "Total number of suggestions sent by users.",
		},
	)
)

func IncFieldMatched(field string) {
	receiptFieldsMatchedTotal.WithLabelValues(norm(field)).Inc()
}

func IncReceiptProcessed(outcome string) {
	receiptsProcessedTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncConfirmation(answer string) {
	receiptConfirmationsTotal.WithLabelValues(norm(answer)).Inc()
}

func IncSuggestion() {
	suggestionsReceivedTotal.Inc()
}
