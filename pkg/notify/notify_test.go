package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestConsole_SuccessLifecycle(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	n := c.Notify(Event{Code: TxSent, Type: TypePending, Message: "Depositing 10 USDC"})
	n.Update(Event{Code: TxConfirmed, Type: TypeSuccess, Message: "Deposit confirmed"})

	assert.Contains(t, buf.String(), "Deposit confirmed")
}

func TestConsole_TerminalStateIsFinal(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	n := c.Notify(Event{Code: TxSent, Type: TypePending, Message: "sent"})
	n.Update(Event{Code: TxFailed, Type: TypeError, Message: "boom"})
	n.Update(Event{Code: TxConfirmed, Type: TypeSuccess, Message: "late success"})

	out := buf.String()
	assert.Contains(t, out, "boom")
	assert.NotContains(t, out, "late success")
	assert.Equal(t, 1, strings.Count(out, "boom"))
}

func TestConsole_DismissIsSilent(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	n := c.Notify(Event{Code: TxSent, Type: TypePending, Message: "sent"})
	n.Dismiss()
	n.Update(Event{Code: TxConfirmed, Type: TypeSuccess, Message: "after dismiss"})

	assert.NotContains(t, buf.String(), "after dismiss")
}

func TestConsole_Hash(t *testing.T) {
	var buf bytes.Buffer
	hash := common.HexToHash("0x1234000000000000000000000000000000000000000000000000000000abcdef")

	n, ok := NewConsole(&buf).Hash(hash)
	assert.True(t, ok)
	n.Update(Event{Code: TxConfirmed, Type: TypeSuccess, Message: "done"})
	assert.Contains(t, buf.String(), "done")
}

func TestNop_HasNoHashSupport(t *testing.T) {
	n, ok := Nop{}.Hash(common.HexToHash("0x01"))
	assert.False(t, ok)
	assert.NotNil(t, n)
	assert.NotPanics(t, func() {
		n.Update(Event{Type: TypeSuccess})
		n.Dismiss()
	})
}

func TestShortHash(t *testing.T) {
	hash := common.HexToHash("0x1234000000000000000000000000000000000000000000000000000000abcdef")
	assert.Equal(t, "0x1234…cdef", ShortHash(hash))
}

func TestEvent_Terminal(t *testing.T) {
	assert.False(t, Event{Type: TypePending}.Terminal())
	assert.False(t, Event{Type: TypeHint}.Terminal())
	assert.True(t, Event{Type: TypeSuccess}.Terminal())
	assert.True(t, Event{Type: TypeError}.Terminal())
}
