package models

import "time"

const (
	// DefaultPageSize размер страницы листинга у поставщика
	DefaultPageSize = 100

	// DefaultMaxPages потолок количества страниц в одном батче
	DefaultMaxPages = 50

	// DefaultMaxKeys максимум ключей, собираемых за один прогон
	DefaultMaxKeys = 5000

	// DefaultCheckpointEvery количество upsert-ов между чекпоинтами
	DefaultCheckpointEvery = 200

	// DefaultOverlap перекрытие окна относительно watermark
	DefaultOverlap = 10 * time.Minute

	// DefaultCallDelay пауза между последовательными вызовами API
	DefaultCallDelay = 500 * time.Millisecond

	// DefaultStaleTTL возраст updated_at, после которого job считается зависшим
	DefaultStaleTTL = 30 * time.Minute

	// DefaultStartupGrace суммарное время ожидания видимости строки job воркером
	DefaultStartupGrace = 20 * time.Second

	// DefaultTokenTTL время жизни токена поставщика в кэше
	DefaultTokenTTL = 24 * 60 * 60 // 24 часа в секундах

	// DefaultBatchSize размер батча bulk-запроса деталей
	DefaultBatchSize = 100
)
