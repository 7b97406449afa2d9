package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser("BlindBoxBot")

	tests := []struct {
		name   string
		text   string
		want   Command
		wantOK bool
	}{
		{"root with action", "/方舟盲盒 市场 上架 num_a X 10", Command{Action: "市场", Args: []string{"上架", "num_a", "X", "10"}}, true},
		{"root only shows help", "/方舟盲盒", Command{}, true},
		{"compact form", "/方舟盲盒市场 num_a", Command{Action: "市场", Args: []string{"num_a"}}, true},
		{"short root compact", "!盲盒钱包", Command{Action: "钱包", Args: []string{}}, true},
		{"english root and alias", ".blindbox open 3", Command{Action: "开", Args: []string{"3"}}, true},
		{"alias case insensitive", "/blindbox Market", Command{Action: "市场", Args: []string{}}, true},
		{"bare action", "/注册", Command{Action: "注册", Args: []string{}}, true},
		{"bot mention", "/钱包@blindboxbot", Command{Action: "钱包", Args: []string{}}, true},
		{"root with mention", "/方舟盲盒@BlindBoxBot 状态 num_a", Command{Action: "状态", Args: []string{"num_a"}}, true},
		{"start maps to help", "/start", Command{Action: "帮助", Args: []string{}}, true},
		{"unknown action after root", "/盲盒 跳舞", Command{Action: "跳舞", Args: []string{}}, true},
		{"other bot", "/钱包@otherbot", Command{}, false},
		{"unknown bare command", "/weather", Command{}, false},
		{"no prefix", "方舟盲盒 钱包", Command{}, false},
		{"only prefix", "/", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ParseCommand(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.want.Action, got.Action)
			assert.ElementsMatch(t, tt.want.Args, got.Args)
		})
	}
}
