package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// ErrCorruptSnapshot — снимок не удалось разобрать.
var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

// EncodeSnapshot сериализует корзину целиком: JSON-массив позиций
// с полным снимком товара.
func EncodeSnapshot(lines []domain.CartLine) ([]byte, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode cart snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot восстанавливает корзину из снимка.
// Позиции без товара или с quantity < 1 отбрасываются, дубли по ключу
// (product id, variant) сливаются в первую позицию с суммой количеств.
func DecodeSnapshot(data []byte) ([]domain.CartLine, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.CartLine{}, nil
	}

	var raw []domain.CartLine
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	return normalizeLines(raw), nil
}

func normalizeLines(raw []domain.CartLine) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(raw))
	index := make(map[domain.LineKey]int, len(raw))

	for _, line := range raw {
		if line.Product.ID == "" || line.Quantity < 1 {
			continue
		}
		if i, ok := index[line.Key()]; ok {
			lines[i].Quantity += line.Quantity
			continue
		}
		index[line.Key()] = len(lines)
		lines = append(lines, line)
	}

	return lines
}
