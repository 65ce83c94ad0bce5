package trust

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_CanTransition(t *testing.T) {
	states := []State{StateRequested, StateTrusted, StateRejected, StateRevoked}
	allowed := map[[2]State]bool{
		{StateRequested, StateTrusted}:  true,
		{StateRequested, StateRejected}: true,
		{StateTrusted, StateRevoked}:    true,
	}

	for _, from := range states {
		for _, to := range states {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				assert.Equal(t, allowed[[2]State{from, to}], from.CanTransition(to))
			})
		}
	}

	assert.True(t, StateRejected.IsTerminal())
	assert.True(t, StateRevoked.IsTerminal())
	assert.False(t, StateRequested.IsTerminal())
}

func TestRequestType_ImpliesType(t *testing.T) {
	cases := map[RequestType]Type{
		RequestSend:    TypeSend,
		RequestReceive: TypeSend,
		RequestManage:  TypeManage,
		RequestYield:   TypeManage,
		RequestDeduct:  TypeDeduct,
		RequestRelease: TypeDeduct,
	}
	for rt, want := range cases {
		assert.True(t, rt.IsValid())
		assert.Equal(t, want, rt.Type())
	}
	assert.False(t, RequestType("borrow").IsValid())
	assert.False(t, State("pending").IsValid())
	assert.False(t, Type("own").IsValid())
}
