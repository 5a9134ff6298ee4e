package usecase

import (
	"regexp"
	"strings"

	"seu-creysson-bot/internal/domain/model"
)

// Name fields stop at the first digit, punctuation mark or line break, so
// "ACME Ltda." yields "ACME Ltda". Accented letters are outside the class.
var (
	payeeRe   = regexp.MustCompile(`(?i)Favorecido\s*[:\-]?\s*([a-zA-Z \t]+)`)
	payerRe   = regexp.MustCompile(`(?i)Pagador\s*[:\-]?\s*([a-zA-Z \t]+)`)
	dueDateRe = regexp.MustCompile(`(?i)Vencimento\s*[:\-]?\s*(\d{2}/\d{2}/\d{4})`)
)

// ExtractFields searches the OCR text for each label independently. The due
// date is matched syntactically only; 99/99/9999 passes through.
func ExtractFields(text string) model.ReceiptSummary {
	return model.ReceiptSummary{
		Payee:   firstGroup(payeeRe, text),
		Payer:   firstGroup(payerRe, text),
		DueDate: firstGroup(dueDateRe, text),
	}
}

// FilterText is ExtractFields followed by Render.
func FilterText(text string) string {
	return ExtractFields(text).Render()
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
