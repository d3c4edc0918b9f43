package m68k

// registerUnimplemented marks opcode as a syntactically valid MC68000
// encoding that this core recognizes but does not execute. Unlike a nil
// dispatch-table slot, which is architecturally illegal and raises the
// illegal-instruction vector, an unimplemented encoding freezes the CPU:
// ExecuteOne reports ok=false and ExecuteState() reads Stopped until the
// next Reset. Only Reset clears it; unlike the STOP instruction, no
// interrupt resumes it.
func registerUnimplemented(opcode uint16) {
	opcodeTable[opcode] = opUnimplemented
}

func opUnimplemented(c *CPU) {
	// Rewind PC to the opcode word so the host sees the freeze address.
	c.reg.PC = c.prevPC
	c.execState = Stopped
}
