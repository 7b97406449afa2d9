package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatPrice возвращает "25 元" или "待定" для неопределённой цены.
func FormatPrice(price int64) string {
	if price > 0 {
		return fmt.Sprintf("%d 元", price)
	}
	return "待定"
}

// FormatSlots возвращает отсортированный список слотов через запятую или "无".
func FormatSlots(slots []int) string {
	if len(slots) == 0 {
		return "无"
	}
	sorted := append([]int(nil), slots...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ", ")
}

// FormatIDList возвращает ID через запятую или "暂无".
func FormatIDList(ids []string) string {
	if len(ids) == 0 {
		return "暂无"
	}
	return strings.Join(ids, ", ")
}
