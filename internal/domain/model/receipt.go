package model

import "strings"

// Labels as they appear on Brazilian payment receipts.
const (
	LabelPayee   = "Favorecido"
	LabelPayer   = "Pagador"
	LabelDueDate = "Vencimento"
)

// ReceiptSummary holds the fields read from one receipt. An empty string
// means the field was not found.
type ReceiptSummary struct {
	Payee   string `json:"payee,omitempty"`
	Payer   string `json:"payer,omitempty"`
	DueDate string `json:"due_date,omitempty"`
}

func (s ReceiptSummary) Empty() bool {
	return s.Payee == "" && s.Payer == "" && s.DueDate == ""
}

// Matched returns the labels of the fields that were found, in render order.
func (s ReceiptSummary) Matched() []string {
	var out []string
	for _, f := range s.fields() {
		if f.value != "" {
			out = append(out, f.label)
		}
	}
	return out
}

// Render formats the summary as "Label: value" lines in the order
// payee, payer, due date. Missing fields are omitted.
func (s ReceiptSummary) Render() string {
	lines := make([]string, 0, 3)
	for _, f := range s.fields() {
		if f.value != "" {
			lines = append(lines, f.label+": "+f.value)
		}
	}
	return strings.Join(lines, "\n")
}

type labeled struct {
	label string
	value string
}

func (s ReceiptSummary) fields() [3]labeled {
	return [3]labeled{
		{LabelPayee, s.Payee},
		{LabelPayer, s.Payer},
		{LabelDueDate, s.DueDate},
	}
}
