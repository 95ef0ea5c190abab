// Package trigger correlates inbound SysEx frames with outstanding requests.
//
// A Registry belongs to one inbound stream (a MIDI port). Request code arms
// a Trigger with the reply pattern it expects, sends its command, then waits:
//
//	t := port.Triggers().Arm(sysex.MustCompile("F0 7E .. 06 02"))
//	defer t.Close()
//	port.Send(identityRequest)
//	if t.Wait(3 * time.Second) {
//	    reply, _ := t.Dequeue()
//	    ...
//	}
//
// Every armed trigger sees every delivered frame. Matching does not consume
// a frame on behalf of other triggers. Delivery never blocks on a trigger,
// so a slow waiter cannot stall the reader goroutine.
//
// Closing a trigger removes it from its registry and wakes any goroutine
// blocked in Wait, which then reports no match.
package trigger
