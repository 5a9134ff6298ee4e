package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"seu-creysson-bot/internal/domain"
)

// Image formats every OCR engine can read. Telegram photos are always JPEG.
var imageMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

func isImageDocument(doc *tgbotapi.Document) bool {
	if doc == nil {
		return false
	}
	if mime := strings.ToLower(doc.MimeType); mime != "" {
		return imageMIMETypes[mime]
	}
	name := strings.ToLower(doc.FileName)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// download fetches a Telegram file into memory, refusing anything larger
// than maxImageBytes whether declared by Telegram or seen on the wire.
func (r *RealTelegramBotAdapter) download(ctx context.Context, fileID string, declaredSize int64) ([]byte, error) {
	if r.maxImageBytes > 0 && declaredSize > r.maxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrImageTooLarge, declaredSize)
	}
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: http %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if r.maxImageBytes > 0 {
		body = io.LimitReader(resp.Body, r.maxImageBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if r.maxImageBytes > 0 && int64(len(data)) > r.maxImageBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", domain.ErrImageTooLarge, r.maxImageBytes)
	}
	return data, nil
}
