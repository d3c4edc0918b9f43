package m68k

import "fmt"

// MemoryView is the read-only memory the disassembler pulls instruction
// words from. Unlike Bus, it has no write side and no cycle accounting:
// disassembly never touches machine state.
type MemoryView interface {
	GetWord(addr uint32) uint16
	GetByte(addr uint32) uint8
}

// Disassembler formats the instruction stream at PC into Motorola-style
// mnemonics. It shares the encoding grammar in ea.go and size.go but
// never writes a register, reads the bus, or charges a cycle; Disassemble
// only ever advances its own PC.
type Disassembler struct {
	mem MemoryView
	PC  uint32
}

// NewDisassembler wraps a memory view for disassembly starting at address 0.
// Callers set d.PC before calling Disassemble.
func NewDisassembler(mem MemoryView) *Disassembler {
	return &Disassembler{mem: mem}
}

func (d *Disassembler) fetchWord() uint16 {
	w := d.mem.GetWord(d.PC)
	d.PC += 2
	return w
}

func (d *Disassembler) fetchLong() uint32 {
	hi := d.fetchWord()
	lo := d.fetchWord()
	return uint32(hi)<<16 | uint32(lo)
}

// sizeSuffix renders a decoded VariableNormal/VariableSmall size as
// ".b"/".w"/".l", or "" for size-less forms.
func sizeSuffix(sz Size) string {
	switch sz {
	case Byte:
		return ".b"
	case Word:
		return ".w"
	case Long:
		return ".l"
	}
	return ""
}

var ccNames = [16]string{
	"t", "f", "hi", "ls", "cc", "cs", "ne", "eq",
	"vc", "vs", "pl", "mi", "ge", "lt", "gt", "le",
}

// eaOperand formats the effective address at (mode, reg) for the given
// size, fetching whatever extension words the mode consumes. It mirrors
// resolveEA's mode table in ea.go, minus every side effect on CPU state:
// it reads from the memory view only, and the pre-decrement/post-increment
// annotations are textual, not applied to any register.
func (d *Disassembler) eaOperand(mode, reg uint8, sz Size) string {
	switch mode {
	case 0:
		return fmt.Sprintf("d%d", reg)
	case 1:
		return fmt.Sprintf("a%d", reg)
	case 2:
		return fmt.Sprintf("(a%d)", reg)
	case 3:
		return fmt.Sprintf("(a%d)+", reg)
	case 4:
		return fmt.Sprintf("-(a%d)", reg)
	case 5:
		disp := int16(d.fetchWord())
		return fmt.Sprintf("%d(a%d)", disp, reg)
	case 6:
		ext := d.fetchWord()
		return d.indexOperand(fmt.Sprintf("a%d", reg), ext)
	case 7:
		switch reg {
		case 0:
			addr := int16(d.fetchWord())
			return fmt.Sprintf("$%x.w", uint16(addr))
		case 1:
			addr := d.fetchLong()
			return fmt.Sprintf("$%x.l", addr)
		case 2:
			base := d.PC
			disp := int16(d.fetchWord())
			return fmt.Sprintf("$%x(pc)", uint32(int32(base)+int32(disp)))
		case 3:
			ext := d.fetchWord()
			return d.indexOperand("pc", ext)
		case 4:
			switch sz {
			case Byte:
				return fmt.Sprintf("#$%x", d.fetchWord()&0xFF)
			case Word:
				return fmt.Sprintf("#$%x", d.fetchWord())
			case Long:
				return fmt.Sprintf("#$%x", d.fetchLong())
			default:
				return fmt.Sprintf("#$%x", d.fetchWord())
			}
		}
	}
	return "?"
}

// indexOperand renders the d8(base,Xn.size) form shared by modes 110 and
// 111/011. ext layout: D/A | Xn(3) | W/L | 0(3) | disp8, same as calcIndex.
func (d *Disassembler) indexOperand(base string, ext uint16) string {
	disp := int8(ext & 0xFF)
	xn := (ext >> 12) & 7
	reg := "d"
	if ext&0x8000 != 0 {
		reg = "a"
	}
	width := "w"
	if ext&0x0800 != 0 {
		width = "l"
	}
	return fmt.Sprintf("%d(%s,%s%d.%s)", disp, base, reg, xn, width)
}

// Disassemble decodes one instruction at d.PC, advances d.PC past it
// (opcode word plus every extension word the form consumes), and returns
// the formatted mnemonic line. An encoding this core does not recognize
// renders as a "dc.w" literal rather than panicking; the disassembler
// never freezes.
func (d *Disassembler) Disassemble() string {
	op := d.fetchWord()
	mnem, operands := d.decode(op)
	if operands == "" {
		return mnem
	}
	return mnem + " " + operands
}

func (d *Disassembler) decode(op uint16) (string, string) {
	switch {
	case op == 0x4E71:
		return "nop", ""
	case op == 0x4E75:
		return "rts", ""
	case op == 0x4E73:
		return "rte", ""
	case op == 0x4E77:
		return "rtr", ""
	case op == 0x4E70:
		return "reset", ""
	case op == 0x4E76:
		return "trapv", ""
	case op == 0x4E72:
		imm := d.fetchWord()
		return "stop", fmt.Sprintf("#$%x", imm)
	case op&0xFFF0 == 0x4E40:
		return "trap", fmt.Sprintf("#%d", op&0xF)
	case op&0xFFF8 == 0x4E50:
		disp := int16(d.fetchWord())
		return "link", fmt.Sprintf("a%d,#%d", op&7, disp)
	case op&0xFFF8 == 0x4E58:
		return "unlk", fmt.Sprintf("a%d", op&7)
	case op&0xFFF8 == 0x4E60:
		return "move", fmt.Sprintf("a%d,usp", op&7)
	case op&0xFFF8 == 0x4E68:
		return "move", fmt.Sprintf("usp,a%d", op&7)
	case op&0xFFC0 == 0x4E80:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "jsr", d.eaOperand(mode, reg, Long)
	case op&0xFFC0 == 0x4EC0:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "jmp", d.eaOperand(mode, reg, Long)
	// swap occupies the Dn-direct slot of pea's encoding space, so it
	// must be matched first.
	case op&0xFFF8 == 0x4840:
		return "swap", fmt.Sprintf("d%d", op&7)
	case op&0xFFC0 == 0x4840:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "pea", d.eaOperand(mode, reg, Long)
	case op&0xF1C0 == 0x41C0:
		reg := (op >> 9) & 7
		mode, r := uint8((op>>3)&7), uint8(op&7)
		return "lea", fmt.Sprintf("%s,a%d", d.eaOperand(mode, r, Long), reg)

	// The to-CCR/to-SR forms sit inside the andi/ori/eori immediate space
	// (EA field 111/100), so they must be matched before the generic
	// immediate group.
	case op == 0x023C:
		imm := d.fetchWord()
		return "andi", fmt.Sprintf("#$%x,ccr", imm&0xFF)
	case op == 0x003C:
		imm := d.fetchWord()
		return "ori", fmt.Sprintf("#$%x,ccr", imm&0xFF)
	case op == 0x0A3C:
		imm := d.fetchWord()
		return "eori", fmt.Sprintf("#$%x,ccr", imm&0xFF)
	case op == 0x027C:
		imm := d.fetchWord()
		return "andi", fmt.Sprintf("#$%x,sr", imm)
	case op == 0x007C:
		imm := d.fetchWord()
		return "ori", fmt.Sprintf("#$%x,sr", imm)
	case op == 0x0A7C:
		imm := d.fetchWord()
		return "eori", fmt.Sprintf("#$%x,sr", imm)

	case op&0xFF00 == 0x0600, op&0xFF00 == 0x0400,
		op&0xFF00 == 0x0C00, op&0xFF00 == 0x0000,
		op&0xFF00 == 0x0A00, op&0xFF00 == 0x0200:
		return d.decodeImmediateOp(op)

	case op&0xF100 == 0x0100, op&0xFF00 == 0x0800:
		return d.decodeBitOp(op)

	case op>>12 == 1, op>>12 == 2, op>>12 == 3:
		return d.decodeMove(op)

	case op&0xFF00 == 0x4000 && op&0x00C0 != 0x00C0:
		sz := variableNormalSize((op >> 6) & 3)
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "negx" + sizeSuffix(sz), d.eaOperand(mode, reg, sz)
	case op&0xFF00 == 0x4200 && op&0x00C0 != 0x00C0:
		sz := variableNormalSize((op >> 6) & 3)
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "clr" + sizeSuffix(sz), d.eaOperand(mode, reg, sz)
	case op&0xFF00 == 0x4400 && op&0x00C0 != 0x00C0:
		sz := variableNormalSize((op >> 6) & 3)
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "neg" + sizeSuffix(sz), d.eaOperand(mode, reg, sz)
	case op&0xFF00 == 0x4600 && op&0x00C0 != 0x00C0:
		sz := variableNormalSize((op >> 6) & 3)
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "not" + sizeSuffix(sz), d.eaOperand(mode, reg, sz)
	case op&0xFFC0 == 0x4AC0:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "tas", d.eaOperand(mode, reg, Byte)
	case op&0xFFC0 == 0x4800:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "nbcd", d.eaOperand(mode, reg, Byte)
	case op&0xFF00 == 0x4A00:
		sz := variableNormalSize((op >> 6) & 3)
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "tst" + sizeSuffix(sz), d.eaOperand(mode, reg, sz)
	case op&0xFFC0 == 0x44C0:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "move", d.eaOperand(mode, reg, Byte) + ",ccr"
	case op&0xFFC0 == 0x46C0:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "move", d.eaOperand(mode, reg, Word) + ",sr"
	case op&0xFFC0 == 0x40C0:
		mode, reg := uint8((op>>3)&7), uint8(op&7)
		return "move", "sr," + d.eaOperand(mode, reg, Word)

	case op&0xFFB8 == 0x4880:
		width := "w"
		if op&0x0040 != 0 {
			width = "l"
		}
		return "ext." + width, fmt.Sprintf("d%d", op&7)
	case op&0xFB80 == 0x4880:
		return d.decodeMovem(op)

	case op&0xF100 == 0x7000:
		reg := (op >> 9) & 7
		imm8 := int8(op & 0xFF)
		return "moveq", fmt.Sprintf("#%d,d%d", imm8, reg)

	case op&0xF000 == 0x5000 && op&0xC0 != 0xC0:
		return d.decodeAddqSubq(op)
	case op&0xF0F8 == 0x50C8:
		return d.decodeDbcc(op)
	case op&0xF0C0 == 0x50C0:
		return d.decodeScc(op)

	case op>>12 == 6:
		return d.decodeBranch(op)

	// addx/subx occupy the (mode=Dn/-(An), opmode 4-6) slot of the add/sub
	// family that would otherwise be reserved, so they must be checked
	// first. Opmode 7 with those EA modes is adda.l/suba.l, not addx/subx.
	case op&0xF130 == 0x9100 && op&0x00C0 != 0x00C0:
		return d.decodeAddxSubx("subx", op)
	case op&0xF130 == 0xD100 && op&0x00C0 != 0x00C0:
		return d.decodeAddxSubx("addx", op)
	case op&0xF000 == 0xB000:
		return d.decodeB000(op)
	case op&0xF000 == 0xD000:
		return d.decodeAddSub("add", op)
	case op&0xF000 == 0x9000:
		return d.decodeAddSub("sub", op)

	case op&0xF0C0 == 0xC0C0:
		return d.decodeMulDiv("mulu", "muls", op)
	case op&0xF0C0 == 0x80C0:
		return d.decodeMulDiv("divu", "divs", op)
	case op&0xF1F8 == 0xC140, op&0xF1F8 == 0xC148, op&0xF1F8 == 0xC188:
		return d.decodeExg(op)
	case op&0xF1F0 == 0xC100:
		return d.decodeAbcdSbcd("abcd", op)
	case op&0xF1F0 == 0x8100:
		return d.decodeAbcdSbcd("sbcd", op)
	case op&0xF000 == 0xC000:
		return d.decodeLogical("and", op)
	case op&0xF000 == 0x8000:
		return d.decodeLogical("or", op)

	case op&0xF000 == 0xE000:
		return d.decodeShiftRotate(op)
	}

	return "dc.w", fmt.Sprintf("$%04x", op)
}

func variableNormalSize(bits uint16) Size {
	switch bits {
	case 0:
		return Byte
	case 1:
		return Word
	case 2:
		return Long
	}
	return 0
}

func (d *Disassembler) decodeMove(op uint16) (string, string) {
	szBits := op >> 12
	var sz Size
	switch szBits {
	case 1:
		sz = Byte
	case 3:
		sz = Word
	case 2:
		sz = Long
	}
	srcMode := uint8((op >> 3) & 7)
	srcReg := uint8(op & 7)
	dstMode := uint8((op >> 6) & 7)
	dstReg := uint8((op >> 9) & 7)
	src := d.eaOperand(srcMode, srcReg, sz)
	dst := d.eaOperand(dstMode, dstReg, sz)
	mnem := "move" + sizeSuffix(sz)
	if dstMode == 1 {
		mnem = "movea" + sizeSuffix(sz)
	}
	return mnem, src + "," + dst
}

func (d *Disassembler) decodeImmediateOp(op uint16) (string, string) {
	names := map[uint16]string{
		0x0000: "ori", 0x0200: "andi", 0x0400: "subi",
		0x0600: "addi", 0x0A00: "eori", 0x0C00: "cmpi",
	}
	name := names[op&0xFF00]
	sz := variableNormalSize((op >> 6) & 3)
	var imm uint32
	switch sz {
	case Byte:
		imm = uint32(d.fetchWord() & 0xFF)
	case Word:
		imm = uint32(d.fetchWord())
	case Long:
		imm = d.fetchLong()
	}
	mode, reg := uint8((op>>3)&7), uint8(op&7)
	return name + sizeSuffix(sz), fmt.Sprintf("#$%x,%s", imm, d.eaOperand(mode, reg, sz))
}

func (d *Disassembler) decodeBitOp(op uint16) (string, string) {
	names := [4]string{"btst", "bchg", "bclr", "bset"}
	name := names[(op>>6)&3]
	mode, reg := uint8((op>>3)&7), uint8(op&7)
	if op&0xF100 == 0x0100 {
		dn := (op >> 9) & 7
		sz := Byte
		if mode == 0 {
			sz = Long
		}
		return name, fmt.Sprintf("d%d,%s", dn, d.eaOperand(mode, reg, sz))
	}
	imm := d.fetchWord() & 0xFF
	sz := Byte
	if mode == 0 {
		sz = Long
	}
	return name, fmt.Sprintf("#%d,%s", imm, d.eaOperand(mode, reg, sz))
}

func (d *Disassembler) decodeAddqSubq(op uint16) (string, string) {
	imm := (op >> 9) & 7
	if imm == 0 {
		imm = 8
	}
	sz := variableNormalSize((op >> 6) & 3)
	mode, reg := uint8((op>>3)&7), uint8(op&7)
	name := "addq"
	if op&0x0100 != 0 {
		name = "subq"
	}
	return name + sizeSuffix(sz), fmt.Sprintf("#%d,%s", imm, d.eaOperand(mode, reg, sz))
}

func (d *Disassembler) decodeDbcc(op uint16) (string, string) {
	cc := (op >> 8) & 0xF
	reg := op & 7
	base := d.PC
	disp := int16(d.fetchWord())
	target := uint32(int32(base) + int32(disp))
	return "db" + ccNames[cc], fmt.Sprintf("d%d,$%x", reg, target)
}

func (d *Disassembler) decodeScc(op uint16) (string, string) {
	cc := (op >> 8) & 0xF
	mode, reg := uint8((op>>3)&7), uint8(op&7)
	return "s" + ccNames[cc], d.eaOperand(mode, reg, Byte)
}

func (d *Disassembler) decodeBranch(op uint16) (string, string) {
	cc := (op >> 8) & 0xF
	base := d.PC
	disp8 := int8(op & 0xFF)
	var disp int32
	if disp8 == 0 {
		disp = int32(int16(d.fetchWord()))
	} else {
		disp = int32(disp8)
	}
	target := uint32(int32(base) + disp)
	switch cc {
	case 0:
		return "bra", fmt.Sprintf("$%x", target)
	case 1:
		return "bsr", fmt.Sprintf("$%x", target)
	}
	return "b" + ccNames[cc], fmt.Sprintf("$%x", target)
}

// decodeB000 covers the 1011 nibble, shared by cmp, cmpa, cmpm and eor:
// opmode 000/001/010 -> cmp, 011 -> cmpa.w, 111 -> cmpa.l, 100/101/110 ->
// eor unless the EA mode field is 001 (An direct, not valid for eor),
// which instead means cmpm (Ay)+,(Ax)+.
func (d *Disassembler) decodeB000(op uint16) (string, string) {
	reg := (op >> 9) & 7
	opmode := (op >> 6) & 7
	mode, r := uint8((op>>3)&7), uint8(op&7)

	switch opmode {
	case 3, 7:
		sz := Word
		if opmode == 7 {
			sz = Long
		}
		return "cmpa" + sizeSuffix(sz), fmt.Sprintf("%s,a%d", d.eaOperand(mode, r, sz), reg)
	case 0, 1, 2:
		sz := variableNormalSize(opmode)
		return "cmp" + sizeSuffix(sz), fmt.Sprintf("%s,d%d", d.eaOperand(mode, r, sz), reg)
	default:
		sz := variableNormalSize(opmode & 3)
		if mode == 1 {
			return "cmpm" + sizeSuffix(sz), fmt.Sprintf("(a%d)+,(a%d)+", r, reg)
		}
		return "eor" + sizeSuffix(sz), fmt.Sprintf("d%d,%s", reg, d.eaOperand(mode, r, sz))
	}
}

func (d *Disassembler) decodeAddSub(base string, op uint16) (string, string) {
	reg := (op >> 9) & 7
	opmode := (op >> 6) & 7
	mode, r := uint8((op>>3)&7), uint8(op&7)
	if opmode == 3 || opmode == 7 {
		sz := Word
		if opmode == 7 {
			sz = Long
		}
		return base + "a" + sizeSuffix(sz), fmt.Sprintf("%s,a%d", d.eaOperand(mode, r, sz), reg)
	}
	sz := variableNormalSize(opmode & 3)
	ea := d.eaOperand(mode, r, sz)
	if opmode>>2 == 1 {
		return base + sizeSuffix(sz), fmt.Sprintf("d%d,%s", reg, ea)
	}
	return base + sizeSuffix(sz), fmt.Sprintf("%s,d%d", ea, reg)
}

func (d *Disassembler) decodeMulDiv(uname, sname string, op uint16) (string, string) {
	reg := (op >> 9) & 7
	mode, r := uint8((op>>3)&7), uint8(op&7)
	ea := d.eaOperand(mode, r, Word)
	name := uname
	if op&0x0100 != 0 {
		name = sname
	}
	return name, fmt.Sprintf("%s,d%d", ea, reg)
}

func (d *Disassembler) decodeExg(op uint16) (string, string) {
	opmode := (op >> 3) & 0x1F
	rx := (op >> 9) & 7
	ry := op & 7
	switch opmode {
	case 0b01000:
		return "exg", fmt.Sprintf("d%d,d%d", rx, ry)
	case 0b01001:
		return "exg", fmt.Sprintf("a%d,a%d", rx, ry)
	default:
		return "exg", fmt.Sprintf("d%d,a%d", rx, ry)
	}
}

func (d *Disassembler) decodeAbcdSbcd(name string, op uint16) (string, string) {
	rx := (op >> 9) & 7
	ry := op & 7
	if op&0x0008 != 0 {
		return name, fmt.Sprintf("-(a%d),-(a%d)", ry, rx)
	}
	return name, fmt.Sprintf("d%d,d%d", ry, rx)
}

func (d *Disassembler) decodeLogical(base string, op uint16) (string, string) {
	reg := (op >> 9) & 7
	opmode := (op >> 6) & 7
	mode, r := uint8((op>>3)&7), uint8(op&7)
	sz := variableNormalSize(opmode & 3)
	ea := d.eaOperand(mode, r, sz)
	if opmode>>2 == 1 {
		return base + sizeSuffix(sz), fmt.Sprintf("d%d,%s", reg, ea)
	}
	return base + sizeSuffix(sz), fmt.Sprintf("%s,d%d", ea, reg)
}

func (d *Disassembler) decodeAddxSubx(name string, op uint16) (string, string) {
	sz := variableNormalSize((op >> 6) & 3)
	rx := (op >> 9) & 7
	ry := op & 7
	if op&0x0008 != 0 {
		return name + sizeSuffix(sz), fmt.Sprintf("-(a%d),-(a%d)", ry, rx)
	}
	return name + sizeSuffix(sz), fmt.Sprintf("d%d,d%d", ry, rx)
}

func (d *Disassembler) decodeShiftRotate(op uint16) (string, string) {
	names := [4][2]string{
		{"asr", "asl"}, {"lsr", "lsl"}, {"roxr", "roxl"}, {"ror", "rol"},
	}
	if op&0x00C0 == 0x00C0 {
		// Memory form: always word, single shift, direction from bit 8.
		typ := (op >> 9) & 3
		dir := (op >> 8) & 1
		mode, r := uint8((op>>3)&7), uint8(op&7)
		return names[typ][dir], d.eaOperand(mode, r, Word)
	}
	sz := variableNormalSize((op >> 6) & 3)
	typ := (op >> 3) & 3
	dir := (op >> 8) & 1
	reg := op & 7
	name := names[typ][dir]
	if op&0x0020 != 0 {
		cntReg := (op >> 9) & 7
		return name + sizeSuffix(sz), fmt.Sprintf("d%d,d%d", cntReg, reg)
	}
	count := (op >> 9) & 7
	if count == 0 {
		count = 8
	}
	return name + sizeSuffix(sz), fmt.Sprintf("#%d,d%d", count, reg)
}

func (d *Disassembler) decodeMovem(op uint16) (string, string) {
	toMem := op&0x0400 == 0
	sz := Word
	if op&0x0040 != 0 {
		sz = Long
	}
	mode, reg := uint8((op>>3)&7), uint8(op&7)
	mask := d.fetchWord()
	list := movemList(mask, mode == 4)
	ea := d.eaOperand(mode, reg, sz)
	if toMem {
		return "movem" + sizeSuffix(sz), list + "," + ea
	}
	return "movem" + sizeSuffix(sz), ea + "," + list
}

// movemList renders a movem register mask as a Motorola range list
// (e.g. "d0-d3/a5"). predecrement reverses the bit order to match the
// A7..A0,D7..D0 encoding the -(An) form uses (see ops_move.go); both
// orderings are remapped to the same canonical d0..d7,a0..a7 slot order
// before run detection so the rendered list always reads ascending.
func movemList(mask uint16, predecrement bool) string {
	name := func(slot int) string {
		if slot < 8 {
			return fmt.Sprintf("d%d", slot)
		}
		return fmt.Sprintf("a%d", slot-8)
	}
	slotSet := func(slot int) bool {
		i := slot
		if predecrement {
			i = 15 - slot
		}
		return mask&(1<<uint(i)) != 0
	}

	var parts []string
	i := 0
	for i < 16 {
		if !slotSet(i) {
			i++
			continue
		}
		start := i
		for i < 16 && slotSet(i) {
			i++
		}
		end := i - 1
		if end == start {
			parts = append(parts, name(start))
		} else {
			parts = append(parts, name(start)+"-"+name(end))
		}
	}
	if len(parts) == 0 {
		return "#0"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "/" + p
	}
	return out
}
