// script_lua.go - Lua automation of a machine

/*
script_lua.go - Lua scripting

A script drives one machine synchronously on the calling goroutine:

  frames(n)        run n frames, returns the termination reason of the last
  key(code, down)  set a key in the model's matrix
  typetext(text)   queue keystrokes for text, returns the number queued
  peek(addr)       read through the current paging
  poke(addr, v)    write through the current paging
  tacts()          tacts since the last reset
  reg(name)        CPU register by name (pc, sp, a, ... or af, bc, ...)
  reset(hard)      hard reset when hard is true, soft otherwise
  machine()        machine id
*/

package main

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

const MAX_SCRIPT_FRAMES = 1_000_000

type luaMachine struct {
	m *Machine
}

func newLuaState(m *Machine) *lua.LState {
	L := lua.NewState()
	lm := &luaMachine{m: m}
	for name, fn := range map[string]lua.LGFunction{
		"frames":   lm.frames,
		"key":      lm.key,
		"typetext": lm.typeText,
		"peek":     lm.peek,
		"poke":     lm.poke,
		"tacts":    lm.tacts,
		"reg":      lm.reg,
		"reset":    lm.reset,
		"machine":  lm.machine,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}
	return L
}

// RunScriptFile executes the Lua file at path against m.
func RunScriptFile(m *Machine, path string) error {
	L := newLuaState(m)
	defer L.Close()
	if err := L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// RunScriptString executes Lua source against m.
func RunScriptString(m *Machine, source string) error {
	L := newLuaState(m)
	defer L.Close()
	if err := L.DoString(source); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

func (lm *luaMachine) frames(L *lua.LState) int {
	n := L.OptInt(1, 1)
	if n < 0 || n > MAX_SCRIPT_FRAMES {
		L.ArgError(1, "frame count out of range")
		return 0
	}
	result := FrameCompleted
	for range n {
		result = lm.m.ExecuteMachineFrame()
		if result != FrameCompleted {
			break
		}
	}
	L.Push(lua.LString(result.String()))
	return 1
}

func (lm *luaMachine) key(L *lua.LState) int {
	lm.m.SetKeyStatus(L.CheckInt(1), L.OptBool(2, true))
	return 0
}

func (lm *luaMachine) typeText(L *lua.LState) int {
	L.Push(lua.LNumber(lm.m.TypeText(L.CheckString(1))))
	return 1
}

func (lm *luaMachine) peek(L *lua.LState) int {
	L.Push(lua.LNumber(lm.m.ReadMemory(uint16(L.CheckInt(1)))))
	return 1
}

func (lm *luaMachine) poke(L *lua.LState) int {
	lm.m.WriteMemory(uint16(L.CheckInt(1)), byte(L.CheckInt(2)))
	return 0
}

func (lm *luaMachine) tacts(L *lua.LState) int {
	L.Push(lua.LNumber(lm.m.Tacts))
	return 1
}

func (lm *luaMachine) reg(L *lua.LState) int {
	name := L.CheckString(1)
	v, ok := lm.m.CPU().Register(name)
	if !ok {
		L.ArgError(1, "unknown register "+name)
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (lm *luaMachine) reset(L *lua.LState) int {
	if L.OptBool(1, false) {
		lm.m.HardReset()
	} else {
		lm.m.SoftReset()
	}
	return 0
}

func (lm *luaMachine) machine(L *lua.LState) int {
	L.Push(lua.LString(lm.m.Profile.ID))
	return 1
}
