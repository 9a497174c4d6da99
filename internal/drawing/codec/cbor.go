package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"drawing-core/internal/drawing/models"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================
// CBOR
// ============================================================

// encMode - Core Deterministic Encoding (RFC 8949 §4.2): отсортированные
// ключи, кратчайшие целые, без неопределенной длины.
var encMode cbor.EncMode

// decMode декодирует any-значения в map[string]any, чтобы результат
// можно было отдать в JSON-декодер.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR кодирует стабилизированный документ в детерминированный CBOR.
// Набор ключей тот же, что у MarshalStable.
func MarshalCBOR(d models.Drawing) ([]byte, error) {
	data, err := encMode.Marshal(toDocument(d.Stabilized()))
	if err != nil {
		return nil, fmt.Errorf("encode drawing %q as cbor: %w", d.ID, err)
	}
	return data, nil
}

// DecodeCBOR разбирает документ, закодированный MarshalCBOR.
func DecodeCBOR(data []byte) (models.Drawing, error) {
	var generic any
	if err := decMode.Unmarshal(data, &generic); err != nil {
		return models.Drawing{}, &SyntaxError{Err: err}
	}

	// CBOR -> JSON без потерь для float64, дальше общий путь разбора.
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return models.Drawing{}, &SyntaxError{Err: err}
	}
	return Decode(asJSON)
}
