package bootctl

import (
	"fmt"

	"github.com/dcontrol/midiboot/internal/sysex"
)

// Commands sent to the device.
var (
	cmdIdentityRequest = sysex.MustParse("F0 7E 7F 06 01 F7")
	cmdEnableRecovery  = sysex.MustParse("F0 00 01 55 42 11 F7")
	cmdExitBoot        = sysex.MustParse("F0 00 01 55 42 01 F7")
	cmdReadPIDFID      = sysex.MustParse("F0 00 01 55 42 0D 02 00 0F 0F 0F 0F 08 F7")

	cmdBankInfo   = [2]sysex.Message{sysex.MustParse("F0 00 01 55 42 08 F7"), sysex.MustParse("F0 00 01 55 42 09 F7")}
	cmdActivate   = [2]sysex.Message{sysex.MustParse("F0 00 01 55 42 02 F7"), sysex.MustParse("F0 00 01 55 42 03 F7")}
	cmdDeactivate = [2]sysex.Message{sysex.MustParse("F0 00 01 55 42 04 F7"), sysex.MustParse("F0 00 01 55 42 05 F7")}
)

// PrivateResetTemplate is completed with the family and product bytes.
const PrivateResetTemplate = "F0 00 01 55 vv vv 1B F7"

// Reply patterns.
var (
	respIdentity = sysex.MustCompile("F0 7E .. 06 02 00 01 55")

	respRecoveryAny      = sysex.MustCompile("F0 00 01 55 42 11 .. F7")
	respRecoveryAck      = sysex.MustCompile("F0 00 01 55 42 11 00 F7")
	respRecoveryRejected = sysex.MustCompile("F0 00 01 55 42 11 01 F7")
	respRecoveryFailed   = sysex.MustCompile("F0 00 01 55 42 11 02 F7")

	respBankInfoAny     = sysex.MustCompile("F0 00 01 55 42 0[89] .. ..")
	respBankInfoInvalid = sysex.MustCompile("F0 00 01 55 42 0[89] 02 F7")
	respBankInfo        = sysex.MustCompile("F0 00 01 55 42 0[89] .. .. .. .. .. .. .. .. .. .. .. .. .. F7")
	respBankInfoFor     = [2]*sysex.Pattern{
		sysex.MustCompile("F0 00 01 55 42 08 .. .."),
		sysex.MustCompile("F0 00 01 55 42 09 .. .."),
	}

	respActivated = [2]*sysex.Pattern{
		sysex.MustCompile("F0 00 01 55 42 02 00 F7"),
		sysex.MustCompile("F0 00 01 55 42 03 00 F7"),
	}
	respDeactivated = [2]*sysex.Pattern{
		sysex.MustCompile("F0 00 01 55 42 04 00 F7"),
		sysex.MustCompile("F0 00 01 55 42 05 00 F7"),
	}

	respFirmwareUpdate = sysex.MustCompile("F0 00 01 55 42 0C .. F7")
)

// Firmware update statuses, compared whole.
var (
	fuGood   = sysex.MustParse("F0 00 01 55 42 0C 00 F7")
	fuBad    = sysex.MustParse("F0 00 01 55 42 0C 01 F7")
	fuFailed = sysex.MustParse("F0 00 01 55 42 0C 02 F7")
)

// What survives of each firmware status on a crippled link.
var (
	blindFUGood   = sysex.MustCompile("F0 00 01 55 42 00")
	blindFUBad    = sysex.MustCompile("F0 00 01 55 42 01")
	blindFUFailed = sysex.MustCompile("F0 00 01 55 42 02")
)

// blindPrefixLen is how much of any reply a crippled link carries intact.
const blindPrefixLen = 4

// Firmware update blocks carry their response control flags at this offset.
const (
	statusControlOffset      = 8
	statusControlReport byte = 0x03
)

func respPID(pid int) *sysex.Pattern {
	return sysex.MustCompile(fmt.Sprintf("F0 00 01 55 42 0D 02 00 0F 0F 0F 0F 08 %02X %02X .. .. F7",
		(pid>>8)&0xFF, pid&0xFF))
}
