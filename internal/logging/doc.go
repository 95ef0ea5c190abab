// Package logging provides structured logging for the midiboot tools.
//
// This package wraps zap with a process-wide logger and a few helpers for
// the things this project logs most: SysEx traffic and bridge connections.
//
// # Log Levels
//
//   - Debug: every SysEx frame in and out, framing detail
//   - Info: protocol milestones (boot code entered, bank activated)
//   - Warn: blind-mode assumptions, retries, corrective resets
//   - Error: failures that end an operation
//
// # Configuration
//
// Logging is silent unless a level is given on the command line or through
// MIDIBOOT_LOG_LEVEL:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Output goes to stderr so it never mixes with command output.
//
// # SysEx Logging
//
//	logging.LogSysEx(logging.DirectionOut, port.Name(), msg)
//
// Frames are rendered as spaced upper-case hex, truncated after 64 bytes.
package logging
