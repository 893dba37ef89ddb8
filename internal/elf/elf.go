// Package elf writes the single-segment, no-section-headers ELF64
// executable described in spec §4.7, grounded exactly on
// original_source's compiler/elf.rs layout and constants.
package elf

import "encoding/binary"

const (
	loadAddr = 0x1000
	pageSize = 0x1000

	ehdrSize = 64
	phdrSize = 56
)

// Write assembles code (the linked RISC-V64 byte image) and startOffset
// (the entry point's byte offset within code, from riscv.Assembler.Link)
// into a complete ELF64 executable image.
func Write(code []byte, startOffset uint64) []byte {
	headerLen := uint64(ehdrSize + phdrSize)
	entry := loadAddr + headerLen + startOffset
	programSize := uint64(len(code)) + loadAddr

	buf := make([]byte, 0, int(headerLen)+len(code))
	buf = appendEhdr(buf, entry)
	buf = appendPhdr(buf, programSize)
	buf = append(buf, code...)
	return buf
}

func appendEhdr(buf []byte, entry uint64) []byte {
	var h [ehdrSize]byte
	copy(h[0:4], []byte{0x7f, 'E', 'L', 'F'})
	h[4] = 0x2 // ELFCLASS64
	h[5] = 0x1 // little endian
	h[6] = 0x1 // EI_VERSION
	h[7] = 0x0 // ELFOSABI_SYSV
	h[8] = 0x0
	// h[9:16] padding stays zero.
	binary.LittleEndian.PutUint16(h[16:18], 0x2)   // ET_EXEC
	binary.LittleEndian.PutUint16(h[18:20], 0xf3)  // EM_RISCV
	binary.LittleEndian.PutUint32(h[20:24], 0x1)   // e_version
	binary.LittleEndian.PutUint64(h[24:32], entry) // e_entry
	binary.LittleEndian.PutUint64(h[32:40], ehdrSize) // e_phoff
	binary.LittleEndian.PutUint64(h[40:48], 0)        // e_shoff
	binary.LittleEndian.PutUint32(h[48:52], 0x1|0x4)  // e_flags: RVC | double-float ABI
	binary.LittleEndian.PutUint16(h[52:54], ehdrSize)
	binary.LittleEndian.PutUint16(h[54:56], phdrSize)
	binary.LittleEndian.PutUint16(h[56:58], 0x1) // one program header
	binary.LittleEndian.PutUint16(h[58:60], 0)   // e_shentsize (unused)
	binary.LittleEndian.PutUint16(h[60:62], 0)   // e_shnum
	binary.LittleEndian.PutUint16(h[62:64], 0)   // e_shstrndx
	return append(buf, h[:]...)
}

func appendPhdr(buf []byte, programSize uint64) []byte {
	var h [phdrSize]byte
	binary.LittleEndian.PutUint32(h[0:4], 0x1)   // PT_LOAD
	binary.LittleEndian.PutUint32(h[4:8], 0b101) // PF_R | PF_X
	binary.LittleEndian.PutUint64(h[8:16], 0x0)  // p_offset
	binary.LittleEndian.PutUint64(h[16:24], loadAddr)
	binary.LittleEndian.PutUint64(h[24:32], loadAddr)
	binary.LittleEndian.PutUint64(h[32:40], programSize)
	binary.LittleEndian.PutUint64(h[40:48], programSize)
	binary.LittleEndian.PutUint64(h[48:56], pageSize)
	return append(buf, h[:]...)
}
