package patch

// ============================================================
// Undo / redo
// ============================================================

// DefaultHistoryCapacity - глубина undo по умолчанию.
const DefaultHistoryCapacity = 256

// History - стеки undo/redo одного документа. Не потокобезопасна:
// владелец (сервис редактора) сериализует доступ сам.
type History struct {
	undo     []Operation
	redo     []Operation
	capacity int
}

// NewHistory создает историю. capacity <= 0 означает DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Push записывает примененную операцию. Новая правка очищает redo;
// при переполнении отбрасывается самая старая запись.
func (h *History) Push(op Operation) {
	if len(h.undo) == h.capacity {
		copy(h.undo, h.undo[1:])
		h.undo = h.undo[:len(h.undo)-1]
	}
	h.undo = append(h.undo, op)
	h.redo = h.redo[:0]
}

// Undo передает apply обратную к последней операции. Стеки меняются,
// только если apply вернул nil.
func (h *History) Undo(apply func(Operation) error) error {
	if len(h.undo) == 0 {
		return ErrNothingToUndo
	}
	op := h.undo[len(h.undo)-1]
	if err := apply(op.Inverse()); err != nil {
		return err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, op)
	return nil
}

// Redo повторяет последнюю отмененную операцию.
func (h *History) Redo(apply func(Operation) error) error {
	if len(h.redo) == 0 {
		return ErrNothingToRedo
	}
	op := h.redo[len(h.redo)-1]
	if err := apply(op); err != nil {
		return err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, op)
	return nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth возвращает размеры стеков undo и redo.
func (h *History) Depth() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

// Reset забывает всю историю, например после полной замены документа.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}
