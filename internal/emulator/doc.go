// Package emulator simulates a boot-code capable SysEx device.
//
// The Device answers the same commands as the hardware: identity requests,
// the private reset and enable-recovery handshake, bank queries, bank
// activation, product ID reads, firmware update blocks and the launch
// command. It plugs into a midi.Loopback port:
//
//	dev := emulator.New(emulator.DefaultConfig())
//	port := midi.NewLoopback("emulator", dev)
//
// Faults can be injected to exercise error paths (rejected recovery, BAD
// packets, silent replies) and a crippled link can be modelled, which
// mangles every reply longer than seven bytes the way some USB MIDI
// interfaces do.
package emulator
