package datarecording

import (
	"github.com/lockstepsim/cachesim/channel"
	"github.com/lockstepsim/cachesim/sim"
)

// A ChannelEvent is one recorded channel decision.
type ChannelEvent struct {
	Step    uint64
	Kind    string
	ID      uint64
	Address uint64
	Data    uint64
}

// A ChannelTracer is a hook that records the decisions of a channel into a
// DataRecorder table, one row per hit, forward, retire, or dropped
// response.
type ChannelTracer struct {
	recorder  DataRecorder
	engine    *sim.Engine
	tableName string
}

// NewChannelTracer creates a ChannelTracer and its table. Attach it to a
// channel with AcceptHook.
func NewChannelTracer(
	recorder DataRecorder,
	engine *sim.Engine,
	tableName string,
) *ChannelTracer {
	recorder.CreateTable(tableName, ChannelEvent{})

	return &ChannelTracer{
		recorder:  recorder,
		engine:    engine,
		tableName: tableName,
	}
}

// Func records one channel event.
func (t *ChannelTracer) Func(ctx sim.HookCtx) {
	event := ChannelEvent{
		Step: t.engine.CurrentStep(),
	}

	switch ctx.Pos {
	case channel.HookPosCacheHit:
		event.Kind = "hit"
	case channel.HookPosMissForward:
		event.Kind = "forward"
	case channel.HookPosRetire:
		event.Kind = "retire"
	case channel.HookPosOrphanRsp:
		event.Kind = "orphan"
	default:
		return
	}

	switch item := ctx.Item.(type) {
	case channel.Request:
		event.ID = item.ID
		event.Address = item.Address
	case channel.Response:
		event.ID = item.ID
		event.Data = item.Data
	}

	t.recorder.InsertData(t.tableName, event)
}
