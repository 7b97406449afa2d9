package bot

import (
	"strings"
)

// Корневые слова команды. Длинные идут первыми для компактных форм.
var rootWords = []string{"方舟盲盒", "blindbox", "盲盒"}

// Канонические действия и их псевдонимы
var actionAliases = map[string]string{
	"signup":    "注册",
	"reg":       "注册",
	"balance":   "钱包",
	"money":     "钱包",
	"wallet":    "钱包",
	"history":   "流水",
	"bag":       "库存",
	"inventory": "库存",
	"list":      "列表",
	"types":     "列表",
	"market":    "市场",
	"行情":        "市场",
	"select":    "选择",
	"开启":        "开",
	"open":      "开",
	"status":    "状态",
	"reset":     "刷新",
	"refresh":   "刷新",
	"reload":    "重载资源",
	"rescan":    "重载资源",
	"admin":     "管理员",
	"help":      "帮助",
	"start":     "帮助",
}

var knownActions = map[string]struct{}{
	"注册": {}, "钱包": {}, "流水": {}, "库存": {}, "列表": {}, "市场": {}, "选择": {},
	"开": {}, "状态": {}, "刷新": {}, "重载资源": {}, "管理员": {}, "帮助": {},
}

// Command — разобранная команда.
// Пустой Action означает вызов без подкоманды (показываем справку).
type Command struct {
	Action string
	Args   []string
}

// CommandParser разбирает команды с префиксами / ! .
// Понимает "/方舟盲盒 市场", "/方舟盲盒市场", "/市场" и суффикс @botname.
type CommandParser struct {
	validPrefixes []string
	botName       string
}

// NewCommandParser создаёт парсер. botName — username бота без @.
func NewCommandParser(botName string) *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
		botName:       strings.ToLower(strings.TrimPrefix(botName, "@")),
	}
}

// ParseCommand разбирает текст. false — сообщение не адресовано боту.
func (p *CommandParser) ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return Command{}, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return Command{}, false
	}

	first, ok := p.stripMention(parts[0])
	if !ok {
		return Command{}, false
	}
	rest := parts[1:]
	lower := strings.ToLower(first)

	for _, root := range rootWords {
		if lower == root {
			if len(rest) == 0 {
				return Command{}, true
			}
			return Command{Action: normalizeAction(rest[0]), Args: rest[1:]}, true
		}
		if strings.HasPrefix(lower, root) {
			return Command{Action: normalizeAction(first[len(root):]), Args: rest}, true
		}
	}

	action := normalizeAction(first)
	if _, ok := knownActions[action]; !ok {
		return Command{}, false
	}
	return Command{Action: action, Args: rest}, true
}

// stripMention убирает @botname. Команда другому боту — false.
func (p *CommandParser) stripMention(word string) (string, bool) {
	idx := strings.Index(word, "@")
	if idx < 0 {
		return word, true
	}
	mention := strings.ToLower(word[idx+1:])
	if p.botName != "" && mention != p.botName {
		return "", false
	}
	return word[:idx], true
}

func normalizeAction(word string) string {
	lower := strings.ToLower(strings.TrimSpace(word))
	if canonical, ok := actionAliases[lower]; ok {
		return canonical
	}
	return lower
}
