package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"

	"listing-edge-service/internal/constants"
	"listing-edge-service/internal/core/port"
)

const (
	// дальше этого размера превью для карточки не нужно
	thumbnailMaxWidth = 640

	// расстояние Хэмминга, ниже которого картинки считаем дубликатами
	// (агрегаторы часто отдают одно фото под разными URL)
	duplicateDistance = 5

	fetchTimeout = 15 * time.Second
)

// PrefetcherAdapter прогревает image-кэш первыми фотографиями карточек.
// Скачивает, нормализует до превью и складывает в хранилище поколения
// image-vN. Перцептивный хэш отсекает дубликаты между URL.
type PrefetcherAdapter struct {
	storage    port.CacheStoragePort
	httpClient *http.Client
	logger     port.LoggerPort

	mu         sync.Mutex
	seenHashes []*goimagehash.ImageHash
}

func NewPrefetcherAdapter(storage port.CacheStoragePort, logger port.LoggerPort) *PrefetcherAdapter {
	return &PrefetcherAdapter{
		storage:    storage,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// WarmImages - чисто рекомендательная операция: любые сбои глотаются,
// пользовательский ответ от нее не зависит.
func (a *PrefetcherAdapter) WarmImages(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}

	store, err := a.storage.Open(ctx, constants.ImageCacheName)
	if err != nil {
		a.logger.Warn("Image warm-up skipped: failed to open image store", port.Fields{
			"error": err.Error(),
		})
		return
	}

	for _, rawURL := range urls {
		if ctx.Err() != nil {
			return
		}
		a.warmOne(ctx, store, rawURL)
	}
}

func (a *PrefetcherAdapter) warmOne(ctx context.Context, store port.CacheStorePort, rawURL string) {
	key := "GET " + rawURL

	// Уже прогрето - не качаем повторно
	if _, ok, err := store.Match(ctx, key); err == nil && ok {
		return
	}

	body, contentType, err := a.fetch(ctx, rawURL)
	if err != nil {
		a.logger.Debug("Image warm-up fetch failed", port.Fields{
			"url":   rawURL,
			"error": err.Error(),
		})
		return
	}

	normalized, err := a.normalize(body)
	if err != nil {
		// Не смогли декодировать - кладем как есть, прогрев важнее превью
		normalized = body
	} else {
		contentType = "image/jpeg"
	}

	header := http.Header{}
	header.Set("Content-Type", contentType)

	putErr := store.Put(ctx, key, &port.CachedResponse{
		Status:   http.StatusOK,
		Header:   header,
		Body:     normalized,
		StoredAt: time.Now(),
	})
	if putErr != nil {
		a.logger.Warn("Image warm-up cache write failed", port.Fields{
			"url":   rawURL,
			"error": putErr.Error(),
		})
	}
}

func (a *PrefetcherAdapter) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// normalize декодирует, отсекает дубликаты по перцептивному хэшу
// и сжимает до превью
func (a *PrefetcherAdapter) normalize(body []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err == nil && a.isDuplicate(hash) {
		// Дубликат уже прогрет под другим URL - превью все равно отдаем,
		// но пережимать заново незачем
		return body, nil
	}

	thumb := resize.Resize(thumbnailMaxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *PrefetcherAdapter) isDuplicate(hash *goimagehash.ImageHash) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, seen := range a.seenHashes {
		if dist, err := hash.Distance(seen); err == nil && dist <= duplicateDistance {
			return true
		}
	}
	a.seenHashes = append(a.seenHashes, hash)
	return false
}
