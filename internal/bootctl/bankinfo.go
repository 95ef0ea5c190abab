package bootctl

import (
	"fmt"

	"github.com/dcontrol/midiboot/internal/sysex"
)

// BankState says what a bank-info reply told us about a bank.
type BankState int

const (
	// BankUnknown means no usable reply was received.
	BankUnknown BankState = iota
	// BankEmpty means the device reported an empty or invalid bank.
	BankEmpty
	// BankValid means the bank holds code with the given version and size.
	BankValid
)

func (s BankState) String() string {
	switch s {
	case BankEmpty:
		return "empty"
	case BankValid:
		return "valid"
	default:
		return "unknown"
	}
}

// SizeUnknown is the Size of a bank that was not decoded.
const SizeUnknown uint32 = ^uint32(0)

// Bank-info reply layout:
// F0 00 01 55 42 0[89] V0 V1 V2 V3 S0 S1 S2 S3 S4 S5 S6 S7 state F7
const (
	bankVersionOffset = 6
	bankVersionLen    = 4
	bankSizeOffset    = 10
	bankSizeLen       = 8
	bankStateOffset   = 18
	bankInfoLen       = 20
	bankActive        = 0x01
)

// CodeBankInfo describes one firmware bank.
type CodeBankInfo struct {
	State   BankState
	Size    uint32
	Version string
	Active  bool
}

// UnknownBank returns the info of a bank that did not answer.
func UnknownBank() CodeBankInfo {
	return CodeBankInfo{Size: SizeUnknown}
}

// ParseCodeBankInfo decodes a bank-info reply.
func ParseCodeBankInfo(msg sysex.Message) CodeBankInfo {
	info := UnknownBank()
	switch {
	case respBankInfoInvalid.Match(msg):
		info.State = BankEmpty
	case respBankInfo.Match(msg):
		info.State = BankValid
		info.Version = msg.ASCII(bankVersionOffset, bankVersionLen)
		info.Size = DecodeBankSize(msg)
		info.Active = msg[bankStateOffset] == bankActive
	}
	return info
}

// DecodeBankSize packs the low nibbles of the eight size bytes, most
// significant first. Replies shorter than a full bank-info frame decode as 0.
func DecodeBankSize(msg sysex.Message) uint32 {
	if len(msg) < bankInfoLen {
		return 0
	}
	v, ok := msg.ToInt(bankSizeOffset, bankSizeLen, 4)
	if !ok {
		return 0
	}
	return uint32(v)
}

// Ok reports whether the bank decoded validly.
func (b CodeBankInfo) Ok() bool {
	return b.State == BankValid && b.Size != SizeUnknown
}

func (b CodeBankInfo) String() string {
	if b.State != BankValid {
		return "INVALID"
	}
	state := "INACTIVE"
	if b.Active {
		state = "ACTIVE"
	}
	return fmt.Sprintf("v%s, 0x%x, %s", b.Version, b.Size, state)
}

// BootCodeInfo is what the boot code reports about both banks.
type BootCodeInfo struct {
	Banks [2]CodeBankInfo
	// Version is the firmware version from the identity reply, if any.
	Version string
}

// Ok reports whether at least one bank decoded validly.
func (b *BootCodeInfo) Ok() bool {
	return b.Banks[0].Ok() || b.Banks[1].Ok()
}

// ActiveBank returns the active bank number, or -1.
func (b *BootCodeInfo) ActiveBank() int {
	for n, bank := range b.Banks {
		if bank.Ok() && bank.Active {
			return n
		}
	}
	return -1
}

func (b *BootCodeInfo) String() string {
	return fmt.Sprintf("Bank0: %s Bank1: %s", b.Banks[0], b.Banks[1])
}
