package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"seu-creysson-bot/internal/config"
	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/ports/adapter"
	"seu-creysson-bot/internal/infra/logging"
)

var _ adapter.OCREngine = (*TesseractEngine)(nil)

// TesseractEngine pipes the image into the tesseract CLI:
//
//	tesseract stdin stdout -l <langs> [--tessdata-dir d] [--psm n]
type TesseractEngine struct {
	path        string
	languages   string
	tessdataDir string
	psm         int
	runner      Runner
	log         *zerolog.Logger
}

func NewTesseractEngine(cfg config.OCRConfig, logger *zerolog.Logger) *TesseractEngine {
	if logger == nil {
		logger = logging.Nop()
	}
	t := &TesseractEngine{
		path:        cfg.TesseractPath,
		languages:   cfg.Languages,
		tessdataDir: cfg.TessdataDir,
		psm:         cfg.PSM,
		log:         logger,
	}
	if t.path == "" {
		t.path = "tesseract"
	}
	if t.languages == "" {
		t.languages = "por+eng"
	}
	t.runner = execRunner{log: logger}
	return t
}

func (t *TesseractEngine) Name() string { return "tesseract" }

func (t *TesseractEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	args := []string{"stdin", "stdout", "-l", t.languages}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}
	if t.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(t.psm))
	}
	out, errb, err := t.runner.Run(ctx, t.path, image, args...)
	if err != nil {
		return "", fmt.Errorf("%w: tesseract: %w: %s", domain.ErrOCRFailed, err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return Normalize(string(out)), nil
}

// StartupCheck fails when the binary cannot be executed.
func (t *TesseractEngine) StartupCheck(ctx context.Context) error {
	out, errb, err := t.runner.Run(ctx, t.path, nil, "--version")
	if err != nil {
		return fmt.Errorf("tesseract not usable at %q: %w: %s", t.path, err, truncate(string(errb), 512))
	}
	version := strings.TrimSpace(firstLine(string(out)))
	if version == "" {
		// older builds print the version on stderr
		version = strings.TrimSpace(firstLine(string(errb)))
	}
	t.log.Info().Str("path", t.path).Str("version", version).Str("languages", t.languages).Msg("tesseract ready")
	return nil
}

// Normalize collapses runs of blanks inside each line and drops empty
// lines, keeping line boundaries so label values do not run together.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.Join(strings.Fields(ln), " ")
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
