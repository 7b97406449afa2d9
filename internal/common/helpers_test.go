package common

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain digits", in: "12345", want: "12345"},
		{name: "qq prefix", in: "[CQ:at,qq=777888]", want: "777888"},
		{name: "user_id prefix", in: "user_id=42 extra 9", want: "42"},
		{name: "mention with digits", in: "@alice (1001)", want: "1001"},
		{name: "no digits", in: "alice", want: ""},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUserID(tt.in))
		})
	}
}

func TestDayKeyUsesUTC8(t *testing.T) {
	// 17:30 UTC — уже следующий день в UTC+8
	ts := time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-02", DayKey(ts))
	assert.Equal(t, 1, BeijingHour(ts))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "25 元", FormatPrice(25))
	assert.Equal(t, "待定", FormatPrice(0))
	assert.Equal(t, "1, 2, 10", FormatSlots([]int{10, 1, 2}))
	assert.Equal(t, "无", FormatSlots(nil))
	assert.Equal(t, "暂无", FormatIDList(nil))
	assert.Equal(t, "g1:u1", Identity{GroupID: "g1", UserID: "u1"}.SessionKey())
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cd := &CooldownError{Remaining: 2100 * time.Millisecond}
	assert.True(t, errors.Is(cd, ErrCooldownActive))
	assert.Equal(t, int64(3), cd.WaitSeconds())

	assert.True(t, errors.Is(&BalanceError{Need: 10, Balance: 5}, ErrInsufficientBalance))
	assert.True(t, errors.Is(&QuantityError{Available: 1}, ErrInsufficientQuantity))
	assert.False(t, errors.Is(&QuantityError{Available: 1}, ErrInsufficientBalance))
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var km KeyedMutex
	unlock := km.Lock("a")
	done := make(chan struct{})
	go func() {
		u := km.Lock("a")
		u()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done

	// другой ключ не блокируется
	u := km.Lock("b")
	u()
}

func TestKeyedMutexForgetsReleasedKeys(t *testing.T) {
	var km KeyedMutex
	for i := 0; i < 100; i++ {
		km.Lock(strconv.Itoa(i))()
	}
	assert.Equal(t, 0, keyedLen(&km))

	unlock := km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.Lock("a")()
		close(done)
	}()
	assert.Eventually(t, func() bool {
		km.mu.Lock()
		defer km.mu.Unlock()
		return km.locks["a"] != nil && km.locks["a"].refs == 2
	}, time.Second, time.Millisecond)

	unlock()
	unlock() // повторный вызов ничего не делает
	<-done
	assert.Equal(t, 0, keyedLen(&km))
}

func keyedLen(km *KeyedMutex) int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.locks)
}
