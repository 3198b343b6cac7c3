package offlinegate

import (
	"net/http"
	"path"
	"strings"
)

// Bucket - категория перехваченного запроса. Ровно одна на запрос.
type Bucket int

const (
	BucketImage Bucket = iota
	BucketAPI
	BucketStatic
	// BucketNavigation - catch-all: сюда же падает все, что не удалось
	// классифицировать иначе
	BucketNavigation
)

func (b Bucket) String() string {
	switch b {
	case BucketImage:
		return "image"
	case BucketAPI:
		return "api"
	case BucketStatic:
		return "static"
	default:
		return "navigation"
	}
}

// imgProxyPrefix - прокси-маршрут для картинок со сторонних CDN:
// GET /imgcdn/<host>/<путь на CDN>
const imgProxyPrefix = "/imgcdn/"

// Classifier раскладывает GET-запросы по бакетам.
// Порядок проверок фиксирован: image -> api -> static -> navigation.
type Classifier struct {
	imageHosts  []string
	apiPrefixes []string
	imageExts   map[string]struct{}
	staticExts  map[string]struct{}
}

func NewClassifier(imageHosts, apiPrefixes, imageExts, staticExts []string) *Classifier {
	c := &Classifier{
		imageHosts:  append([]string(nil), imageHosts...),
		apiPrefixes: append([]string(nil), apiPrefixes...),
		imageExts:   make(map[string]struct{}, len(imageExts)),
		staticExts:  make(map[string]struct{}, len(staticExts)),
	}
	for _, ext := range imageExts {
		c.imageExts[ext] = struct{}{}
	}
	for _, ext := range staticExts {
		c.staticExts[ext] = struct{}{}
	}
	return c
}

// AddImageHosts дополняет allowlist хостов (например, из maps-конфигурации)
func (c *Classifier) AddImageHosts(hosts []string) {
	c.imageHosts = append(c.imageHosts, hosts...)
}

// externalHost вытаскивает хост CDN из прокси-пути /imgcdn/<host>/...
func externalHost(reqPath string) string {
	if !strings.HasPrefix(reqPath, imgProxyPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(reqPath, imgProxyPrefix)
	if idx := strings.IndexByte(rest, '/'); idx > 0 {
		return rest[:idx]
	}
	return rest
}

func (c *Classifier) isImageHost(host string) bool {
	if host == "" {
		return false
	}
	for _, known := range c.imageHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

// Classify относит запрос ровно к одному бакету
func (c *Classifier) Classify(r *http.Request) Bucket {
	reqPath := r.URL.Path
	ext := strings.ToLower(path.Ext(reqPath))

	// 1. Картинки: по расширению либо по известному хостингу
	if _, ok := c.imageExts[ext]; ok {
		return BucketImage
	}
	if c.isImageHost(externalHost(reqPath)) {
		return BucketImage
	}

	// 2. API: по allowlist'у префиксов пути
	for _, prefix := range c.apiPrefixes {
		if strings.HasPrefix(reqPath, prefix) {
			return BucketAPI
		}
	}

	// 3. Статика: по расширению
	if _, ok := c.staticExts[ext]; ok {
		return BucketStatic
	}

	// 4. Все остальное - навигация (SPA-роуты без расширений)
	return BucketNavigation
}
