package filters

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/config"
)

func runtimeWithBlacklist(ids ...string) config.RuntimeSource {
	return config.RuntimeFunc(func() config.RuntimeSettings {
		s := config.DefaultRuntimeSettings()
		s.BlacklistUserIDs = ids
		return s
	})
}

func groupMessage(chatID, userID int64) *telego.Message {
	return &telego.Message{
		Chat: telego.Chat{ID: chatID, Type: telego.ChatTypeSupergroup},
		From: &telego.User{ID: userID},
		Text: "/方舟盲盒 钱包",
	}
}

func TestCheckAccessIdentity(t *testing.T) {
	f := NewAccessFilter(nil, runtimeWithBlacklist())

	id, err := f.CheckAccess(groupMessage(-100123, 42))
	require.NoError(t, err)
	assert.Equal(t, common.Identity{GroupID: "-100123", UserID: "42", ChatID: -100123}, id)

	private := &telego.Message{
		Chat: telego.Chat{ID: 42, Type: telego.ChatTypePrivate},
		From: &telego.User{ID: 42},
	}
	id, err = f.CheckAccess(private)
	require.NoError(t, err)
	assert.Equal(t, common.PrivateGroupID, id.GroupID)
	assert.Equal(t, "private:42", id.SessionKey())
}

func TestCheckAccessDenials(t *testing.T) {
	tests := []struct {
		name    string
		allowed []int64
		black   []string
		msg     *telego.Message
		wantErr error
	}{
		{
			name:    "no sender",
			msg:     &telego.Message{Chat: telego.Chat{ID: -1, Type: telego.ChatTypeGroup}},
			wantErr: common.ErrIdentityUnresolvable,
		},
		{
			name:    "chat not allowed",
			allowed: []int64{-200},
			msg:     groupMessage(-100, 1),
			wantErr: ErrChatNotAllowed,
		},
		{
			name:    "private chat bypasses allow list",
			allowed: []int64{-200},
			msg:     &telego.Message{Chat: telego.Chat{ID: 1, Type: telego.ChatTypePrivate}, From: &telego.User{ID: 1}},
		},
		{
			name:    "blacklisted",
			black:   []string{"7"},
			msg:     groupMessage(-100, 7),
			wantErr: common.ErrBlacklisted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewAccessFilter(tt.allowed, runtimeWithBlacklist(tt.black...))
			_, err := f.CheckAccess(tt.msg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
