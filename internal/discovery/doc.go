// Package discovery finds and advertises midiboot websocket bridges with
// multicast DNS.
//
// A bridge registers itself as a "_midiboot._tcp" service. TXT records
// carry the websocket path, the name of the MIDI port it serves and the
// bridge version.
//
// # Usage Example
//
//	bridges, err := discovery.QuickScan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range bridges {
//	    fmt.Println(b, b.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Bridges must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
