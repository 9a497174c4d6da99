// Package codec переводит Drawing в байты и обратно.
//
// MarshalStable дает одинаковые байты для одинаковых данных: коллекции
// отсортированы по id, координаты округлены до 4 знаков, порядок ключей
// фиксирован, отступ - 2 пробела. Decode - обратная операция, она же
// единственное место, где входные данные могут оказаться битыми.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"drawing-core/internal/drawing/models"
)

// ============================================================
// Stable encoding
// ============================================================

const indent = "  "

// MarshalStable кодирует стабилизированную копию документа.
// Для документа, прошедшего валидацию, ошибки не бывает; NaN и ±Inf
// в JSON не представимы и возвращаются ошибкой.
func MarshalStable(d models.Drawing) ([]byte, error) {
	doc := toDocument(d.Stabilized())

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", indent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode drawing %q: %w", d.ID, err)
	}
	return buf.Bytes(), nil
}

// Canonicalize декодирует документ и заново кодирует его стабильно.
func Canonicalize(data []byte) ([]byte, error) {
	d, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return MarshalStable(d)
}

// ============================================================
// Helpers
// ============================================================

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func unhandled(family string, v any) string {
	return fmt.Sprintf("codec: unhandled %s variant %T", family, v)
}
