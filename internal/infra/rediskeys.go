package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "erp"
)

// RecordCacheKey — ключ кэша записи: erp:cache:categories:{id}
func RecordCacheKey(resource, id string) string {
	return fmt.Sprintf("%s:cache:%s:%s", RedisNamespace, resource, id)
}
