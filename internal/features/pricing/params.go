// Package pricing рассчитывает базовую цену открытия и рыночную цену приза.
// Рыночная цена = база × дневной множитель рынка × коэффициент дефицита,
// с поправкой на средние цены пользовательских лотов.
package pricing

import (
	"strings"

	"serotonyl.ru/blindbox-bot/internal/config"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
)

// Params — параметры расчёта. Значения берутся из runtime_config как есть,
// ограничения волатильности и веса применяет ParamsFromSettings.
type Params struct {
	NumberBoxPrice         int64
	SpecialBoxDefaultPrice int64
	SpecialBoxPrices       map[string]int64
	Volatility             float64
	ScarcityWeight         float64
}

// ParamsFromSettings строит параметры из runtime_config с ограничениями диапазонов.
func ParamsFromSettings(s config.RuntimeSettings) Params {
	return Params{
		NumberBoxPrice:         s.NumberBoxPrice,
		SpecialBoxDefaultPrice: s.SpecialBoxDefaultPrice,
		SpecialBoxPrices:       s.SpecialBoxPrices,
		Volatility:             s.Volatility(),
		ScarcityWeight:         s.ScarcityWeight(),
	}
}

// BasePrice возвращает базовую цену категории.
// Для неизвестной категории тип угадывается по префиксу ID.
func (p Params) BasePrice(categoryID string, cat *catalog.Category) int64 {
	if cat != nil {
		if cat.Type == catalog.TypeNumber {
			return p.NumberBoxPrice
		}
		return p.specialPrice(categoryID)
	}
	if strings.HasPrefix(categoryID, "num") {
		return p.NumberBoxPrice
	}
	return p.specialPrice(categoryID)
}

func (p Params) specialPrice(categoryID string) int64 {
	if price, ok := p.SpecialBoxPrices[categoryID]; ok {
		return price
	}
	return p.SpecialBoxDefaultPrice
}
