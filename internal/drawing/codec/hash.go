package codec

import (
	"encoding/hex"

	"drawing-core/internal/drawing/models"

	"github.com/zeebo/blake3"
)

// ============================================================
// Content hash
// ============================================================

// Hash - BLAKE3-дайджест стабильных байтов документа.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// stableDomainKey отделяет хэши документов от любых других BLAKE3-хэшей
// тех же байтов. Смена ключа инвалидирует все сохраненные хэши.
var stableDomainKey = [32]byte{
	'd', 'r', 'a', 'w', 'i', 'n', 'g', '.', 's', 't', 'a', 'b', 'l', 'e', '.', 'j',
	's', 'o', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashBytes хэширует уже стабильные байты.
func HashBytes(stable []byte) Hash {
	hasher, err := blake3.NewKeyed(stableDomainKey[:])
	if err != nil {
		panic("codec: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(stable)

	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// ContentHash - хэш документа: одинаковые данные дают одинаковый хэш
// независимо от порядка коллекций в памяти.
func ContentHash(d models.Drawing) (Hash, error) {
	data, err := MarshalStable(d)
	if err != nil {
		return Hash{}, err
	}
	return HashBytes(data), nil
}
