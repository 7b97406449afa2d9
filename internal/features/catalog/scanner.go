package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Root — корневой каталог ресурсов одного типа.
type Root struct {
	Dir  string
	Type BoxType
}

// GuideCandidates — имена файлов обложки. Они никогда не считаются призами.
var GuideCandidates = []string{"selection.jpg", "selection.png", "cover.jpg", "cover.png"}

var (
	itemPattern = regexp.MustCompile(`^(\d+)[-_](.+)$`)
	imageExts   = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}}
)

// Scan обходит корни и возвращает категории по ID.
// Отсутствующий корень пропускается. Каталог без призов или без слотов не становится категорией.
// Если ID встречается в нескольких корнях, побеждает последний.
func Scan(roots []Root) (map[string]*Category, error) {
	result := make(map[string]*Category)
	for _, root := range roots {
		if root.Dir == "" {
			continue
		}
		entries, err := os.ReadDir(root.Dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения каталога %s: %w", root.Dir, err)
		}

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(root.Dir, e.Name())
			cat, err := scanCategory(e.Name(), root.Type, dir)
			if err != nil {
				return nil, err
			}
			if cat == nil {
				continue
			}
			if prev, ok := result[cat.ID]; ok {
				log.WithFields(log.Fields{
					"category_id": cat.ID,
					"replaced":    prev.Dir,
					"by":          cat.Dir,
				}).Warn("Категория найдена в нескольких корнях")
			}
			result[cat.ID] = cat
		}
	}
	return result, nil
}

func scanCategory(id string, typ BoxType, dir string) (*Category, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения категории %s: %w", dir, err)
	}

	items := make(map[string]*Item)
	slotSet := make(map[int]struct{})
	for _, e := range entries {
		if e.IsDir() || isGuide(e.Name()) {
			continue
		}
		item, ok := parseItem(e.Name())
		if !ok {
			continue
		}
		item.Path = filepath.Join(dir, e.Name())
		items[item.ID] = item
		slotSet[item.Slot] = struct{}{}
	}
	if len(items) == 0 || len(slotSet) == 0 {
		return nil, nil
	}

	slots := make([]int, 0, len(slotSet))
	for s := range slotSet {
		slots = append(slots, s)
	}
	sort.Ints(slots)

	cat := &Category{
		ID:         id,
		Type:       typ,
		Dir:        dir,
		GuideImage: findGuide(dir),
		Items:      items,
		Slots:      slots,
	}
	cat.Signature = Signature(cat.ItemIDs(), slots)
	return cat, nil
}

// parseItem разбирает имя файла вида "03-name.png" или "3_name.jpg".
func parseItem(filename string) (*Item, bool) {
	ext := filepath.Ext(filename)
	if _, ok := imageExts[strings.ToLower(ext)]; !ok {
		return nil, false
	}
	stem := strings.TrimSuffix(filename, ext)
	m := itemPattern.FindStringSubmatch(stem)
	if m == nil {
		return nil, false
	}
	slot, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	name := strings.TrimSpace(m[2])
	if name == "" {
		name = stem
	}
	return &Item{ID: filename, Name: name, Slot: slot}, true
}

func isGuide(name string) bool {
	for _, g := range GuideCandidates {
		if name == g {
			return true
		}
	}
	return false
}

func findGuide(dir string) string {
	for _, g := range GuideCandidates {
		p := filepath.Join(dir, g)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Signature — отпечаток содержимого категории.
// Меняется, когда добавляют, удаляют или переименовывают файлы призов.
func Signature(itemIDs []string, slots []int) string {
	ids := append([]string(nil), itemIDs...)
	sort.Strings(ids)
	ss := append([]int(nil), slots...)
	sort.Ints(ss)
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(ids, "|") + "::" + strings.Join(parts, ",")
}
