package constants

// Поколения именованных хранилищ offline-шлюза. Миграция кэша - это bump
// версии здесь: на activate все хранилища с чужими именами сносятся целиком.
const (
	StaticCacheName  = "static-v1"
	DynamicCacheName = "dynamic-v1"
	ImageCacheName   = "image-v1"
)

// CurrentCacheGenerations - полный список актуальных имен
var CurrentCacheGenerations = []string{StaticCacheName, DynamicCacheName, ImageCacheName}

// StaticAssetManifest - критичные ассеты, которые заливаются в static-кэш
// на install. Всё или ничего: не скачался один - install падает целиком.
var StaticAssetManifest = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/favicon.ico",
	"/assets/app.js",
	"/assets/app.css",
	"/assets/logo.svg",
	"/offline.html",
}

// AppShellPath - корневой документ SPA; отдается при офлайн-навигации
const AppShellPath = "/"

// APIPathPrefixes - allowlist префиксов, по которым запрос считается API
var APIPathPrefixes = []string{
	"/api/properties",
	"/api/agents",
	"/api/inquiries",
	"/api/neighborhoods",
	"/api/config",
}

// Расширения для классификации по файлу
var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".svg", ".ico"}

	StaticExtensions = []string{".js", ".css", ".html", ".json", ".woff", ".woff2", ".ttf", ".map", ".txt"}
)

// KnownImageHosts - хостинги картинок объявлений (CDN), по которым запрос
// классифицируется как image даже без расширения в пути. Список дополняется
// хостами из maps-конфигурации на старте.
var KnownImageHosts = []string{
	"images.unsplash.com",
	"photos.zillowstatic.com",
	"cloudfront.net",
}
