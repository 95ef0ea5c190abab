// Package midi provides the SysEx transports the boot-control session runs
// over.
//
// Every transport implements Port: fire-and-forget Send, a paced
// SendThrottled, and a trigger.Registry fed by a reader goroutine that
// splits the inbound byte stream into frames.
//
// Available transports:
//
//   - SerialPort: a MIDI UART or USB-serial adapter (31250 baud by default)
//   - WebSocketPort: a port served remotely by midiboot-bridge
//   - Loopback: an in-process port wired to a Handler such as the device
//     emulator
//
// Transports that can slow their output for fragile interfaces also
// implement SafeModer.
package midi
