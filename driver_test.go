package m68k

import "testing"

// newTestCPU builds a CPU over a fresh testBus with supervisor SR and the
// given program words at pc, without going through the reset vectors.
func newTestCPU(pc uint32, words ...uint16) (*CPU, *testBus) {
	bus := &testBus{}
	for i, w := range words {
		writeWord(bus, pc+uint32(i*2), w)
	}
	cpu := &CPU{bus: bus}
	cpu.SetState([8]uint32{}, [8]uint32{}, pc, 0x2700, 0, 0x10000)
	return cpu, bus
}

func TestDecodeExecutePhases(t *testing.T) {
	t.Run("decode latches, execute completes", func(t *testing.T) {
		cpu, _ := newTestCPU(0x1000, 0x4E71) // NOP

		if cpu.ExecuteState() != ReadyToDecode {
			t.Fatalf("ExecuteState = %v, want ReadyToDecode", cpu.ExecuteState())
		}

		ok, dn := cpu.DecodeOne()
		if !ok {
			t.Fatal("DecodeOne returned ok=false")
		}
		if cpu.ExecuteState() != ReadyToExecute {
			t.Errorf("ExecuteState after decode = %v, want ReadyToExecute", cpu.ExecuteState())
		}
		if got := cpu.CurrentInstructionAddr(); got != 0x1000 {
			t.Errorf("CurrentInstructionAddr = 0x%X, want 0x1000", got)
		}

		ok, en := cpu.ExecuteOne()
		if !ok {
			t.Fatal("ExecuteOne returned ok=false")
		}
		if cpu.ExecuteState() != ReadyToDecode {
			t.Errorf("ExecuteState after execute = %v, want ReadyToDecode", cpu.ExecuteState())
		}
		if cpu.PC() != 0x1002 {
			t.Errorf("PC = 0x%X, want 0x1002", cpu.PC())
		}
		if dn+en != 4 {
			t.Errorf("decode+execute cycles = %d, want 4 (NOP)", dn+en)
		}
	})

	t.Run("decode twice is idempotent", func(t *testing.T) {
		cpu, _ := newTestCPU(0x1000, 0x4E71)

		cpu.DecodeOne()
		ok, n := cpu.DecodeOne()
		if !ok || n != 0 {
			t.Errorf("second DecodeOne = (%v, %d), want (true, 0)", ok, n)
		}
		if cpu.PC() != 0x1002 {
			t.Errorf("PC = 0x%X, want 0x1002 (opcode fetched once)", cpu.PC())
		}
	})

	t.Run("execute without decode is a no-op", func(t *testing.T) {
		cpu, _ := newTestCPU(0x1000, 0x4E71)

		ok, n := cpu.ExecuteOne()
		if ok || n != 0 {
			t.Errorf("ExecuteOne with nothing pending = (%v, %d), want (false, 0)", ok, n)
		}
	})

	t.Run("illegal encoding resolves inside decode", func(t *testing.T) {
		cpu, bus := newTestCPU(0x1000, 0x4AFC) // ILLEGAL
		bus.Write(Long, vecIllegalInstruction*4, 0x2000)

		ok, _ := cpu.DecodeOne()
		if !ok {
			t.Fatal("DecodeOne returned ok=false")
		}
		if cpu.ExecuteState() != ReadyToDecode {
			t.Errorf("ExecuteState = %v, want ReadyToDecode (exception serviced in decode)", cpu.ExecuteState())
		}
		if cpu.PC() != 0x2000 {
			t.Errorf("PC = 0x%X, want 0x2000 (illegal-instruction handler)", cpu.PC())
		}
		// Frame holds the faulting instruction address.
		if got := bus.Read(Long, cpu.Registers().A[7]+2); got != 0x1000 {
			t.Errorf("pushed PC = 0x%X, want 0x1000", got)
		}
	})
}

func TestUnimplementedFreeze(t *testing.T) {
	// RESET is a recognized encoding this core does not execute.
	cpu, _ := newTestCPU(0x1000, 0x4E70)

	ok, _ := cpu.DecodeOne()
	if !ok {
		t.Fatal("DecodeOne returned ok=false")
	}
	ok, _ = cpu.ExecuteOne()
	if ok {
		t.Error("ExecuteOne returned ok=true for unimplemented encoding")
	}
	if cpu.ExecuteState() != Stopped {
		t.Errorf("ExecuteState = %v, want Stopped", cpu.ExecuteState())
	}
	if cpu.PC() != 0x1000 {
		t.Errorf("PC = 0x%X, want 0x1000 (restored to the opcode address)", cpu.PC())
	}

	// Frozen: further steps do nothing, only Reset recovers.
	if n := cpu.Step(); n != 0 {
		t.Errorf("Step on frozen CPU = %d cycles, want 0", n)
	}
	cpu.SetInterruptControl(7)
	if n := cpu.Step(); n != 0 {
		t.Errorf("Step on frozen CPU after interrupt = %d cycles, want 0 (freeze is not STOP)", n)
	}
}

func TestStopAndInterruptControl(t *testing.T) {
	// STOP #$2000 keeps supervisor mode with all interrupt levels unmasked.
	cpu, bus := newTestCPU(0x1000, 0x4E72, 0x2000)
	bus.Write(Long, (24+2)*4, 0x3000) // level-2 autovector handler

	cpu.Step()
	if cpu.ExecuteState() != Stopped {
		t.Fatalf("ExecuteState after STOP = %v, want Stopped", cpu.ExecuteState())
	}

	// While stopped, steps only poll for interrupts.
	pc := cpu.PC()
	if n := cpu.Step(); n == 0 {
		t.Error("stopped CPU should still consume poll cycles")
	}
	if cpu.PC() != pc {
		t.Errorf("PC advanced to 0x%X while stopped", cpu.PC())
	}

	// An unmasked interrupt level wakes the CPU into its handler.
	cpu.SetInterruptControl(2)
	if got := cpu.InterruptControl(); got != 2 {
		t.Fatalf("InterruptControl = %d, want 2", got)
	}
	cpu.Step()
	if cpu.ExecuteState() != ReadyToDecode {
		t.Errorf("ExecuteState after wake = %v, want ReadyToDecode", cpu.ExecuteState())
	}
	if cpu.PC() != 0x3000 {
		t.Errorf("PC = 0x%X, want 0x3000 (level-2 handler)", cpu.PC())
	}
	if mask := (cpu.Registers().SR >> 8) & 7; mask != 2 {
		t.Errorf("interrupt mask = %d, want 2", mask)
	}
	if cpu.InterruptControl() != 0 {
		t.Errorf("InterruptControl = %d after service, want 0", cpu.InterruptControl())
	}
}

func TestInterruptMasking(t *testing.T) {
	t.Run("level at or below mask is deferred", func(t *testing.T) {
		cpu, _ := newTestCPU(0x1000, 0x4E71, 0x4E71)

		// SR mask is 7: nothing below NMI gets through.
		cpu.SetInterruptControl(3)
		cpu.Step()
		if cpu.PC() != 0x1002 {
			t.Errorf("PC = 0x%X, want 0x1002 (interrupt masked, NOP ran)", cpu.PC())
		}
	})

	t.Run("level 7 is non-maskable", func(t *testing.T) {
		cpu, bus := newTestCPU(0x1000, 0x4E71)
		bus.Write(Long, (24+7)*4, 0x4000)

		cpu.SetInterruptControl(7)
		cpu.Step()
		if cpu.PC() != 0x4000 {
			t.Errorf("PC = 0x%X, want 0x4000 (NMI handler)", cpu.PC())
		}
	})

	t.Run("user-mode interrupt switches to SSP", func(t *testing.T) {
		bus := &testBus{}
		writeWord(bus, 0x1000, 0x4E71)
		bus.Write(Long, (24+5)*4, 0x5000)
		cpu := &CPU{bus: bus}
		cpu.SetState([8]uint32{}, [8]uint32{}, 0x1000, 0x0000, 0x8000, 0x10000)

		cpu.SetInterruptControl(5)
		cpu.Step()
		if !cpu.InSupervisorMode() {
			t.Fatal("expected supervisor mode inside interrupt handler")
		}
		reg := cpu.Registers()
		if reg.USP != 0x8000 {
			t.Errorf("USP = 0x%X, want 0x8000 (saved)", reg.USP)
		}
		if reg.A[7] != 0x10000-6 {
			t.Errorf("A7 = 0x%X, want 0x%X (SSP after frame push)", reg.A[7], 0x10000-6)
		}
	})
}

func TestOperationHistory(t *testing.T) {
	cpu, _ := newTestCPU(0x1000, 0x4E71, 0x4E71, 0x4E71)

	for i := 0; i < 3; i++ {
		cpu.Step()
	}

	ring, head := cpu.OperationHistory()
	if head != 3 {
		t.Errorf("head = %d, want 3", head)
	}
	want := []uint32{0x1000, 0x1002, 0x1004}
	for i, addr := range want {
		if ring[i] != addr {
			t.Errorf("ring[%d] = 0x%X, want 0x%X", i, ring[i], addr)
		}
	}
}

func TestOperationHistoryWraps(t *testing.T) {
	cpu, bus := newTestCPU(0x1000)
	fillNOPs(bus, 0x1000, historySize+2)

	for i := 0; i < historySize+2; i++ {
		cpu.Step()
	}

	ring, head := cpu.OperationHistory()
	if head != 2 {
		t.Errorf("head = %d, want 2 after wrap", head)
	}
	// Slots 0 and 1 hold the two post-wrap addresses.
	if ring[0] != 0x1000+uint32(historySize*2) {
		t.Errorf("ring[0] = 0x%X, want 0x%X", ring[0], 0x1000+uint32(historySize*2))
	}
	if ring[1] != 0x1000+uint32((historySize+1)*2) {
		t.Errorf("ring[1] = 0x%X, want 0x%X", ring[1], 0x1000+uint32((historySize+1)*2))
	}
}

func TestSetPC(t *testing.T) {
	cpu, bus := newTestCPU(0x1000, 0x4AFC)
	writeWord(bus, 0x2000, 0x4E71)

	cpu.SetPC(0x2000)
	if cpu.PC() != 0x2000 {
		t.Fatalf("PC = 0x%X, want 0x2000", cpu.PC())
	}
	cpu.Step()
	if cpu.PC() != 0x2002 {
		t.Errorf("PC = 0x%X, want 0x2002 (NOP at the new PC ran)", cpu.PC())
	}
}

func TestInSupervisorMode(t *testing.T) {
	cpu, _ := newTestCPU(0x1000, 0x4E71)
	if !cpu.InSupervisorMode() {
		t.Error("expected supervisor mode with SR=0x2700")
	}

	cpu.SetState([8]uint32{}, [8]uint32{}, 0x1000, 0x0000, 0x8000, 0x10000)
	if cpu.InSupervisorMode() {
		t.Error("expected user mode with SR=0x0000")
	}
	if cpu.Registers().A[7] != 0x8000 {
		t.Errorf("A7 = 0x%X, want USP 0x8000 in user mode", cpu.Registers().A[7])
	}
}
