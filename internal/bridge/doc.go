// Package bridge serves a local MIDI port to remote midiboot clients over
// websocket.
//
// Each binary websocket message carries one SysEx frame. Frames a client
// sends are written to the MIDI port. Every SysEx frame the port receives
// is broadcast to all connected clients, so each client runs its own
// triggers on a full copy of the inbound stream.
//
// # Usage Example
//
//	port, err := midi.OpenSerial("/dev/ttyUSB0", midi.DefaultBaudRate)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := bridge.New(&bridge.Config{Host: "0.0.0.0", Port: 7531}, port)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Clients connect with midi.DialBridge.
package bridge
