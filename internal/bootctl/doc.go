// Package bootctl drives the boot code of a SysEx-controlled device.
//
// A Session wraps one midi.Port and issues the boot protocol commands:
// identify, enter boot code, query and activate code banks, write firmware
// update blocks, and launch the application again. Each command arms a
// trigger for the reply it expects, sends, and waits a fixed time:
//
//	s := bootctl.New(port, hints, bootctl.WithLogger(log))
//	if err := s.EnableBootcode(ctx); err != nil {
//	    return err
//	}
//	info, err := s.BootCodeInfo(ctx)
//
// # Blind mode
//
// Some MIDI interfaces lose the middle of frames longer than a few bytes.
// In blind mode every reply pattern shrinks to its first four bytes, checks
// that need a full reply are skipped or assumed to pass, and firmware block
// statuses are recovered from the bytes that survive. Blind mode is never
// switched on implicitly: it comes from WithBlindMode, SetBlindMode, or
// device hints marked CrippledIO.
//
// # Errors
//
// Failures are *Error values classified by Kind. The text of the most
// recent failure is also available from Session.LastError.
//
// A Session runs one operation at a time; callers must not share it across
// goroutines without their own locking.
package bootctl
