// Package wire implements the byte-level contract shared by the gateway,
// device agents and clients.
//
// Every TCP exchange is a sequence of frames:
//
//	┌──────────────────────┬───────────────────────────┐
//	│ length (uint32, BE)  │ payload (length bytes)    │
//	└──────────────────────┴───────────────────────────┘
//
// Payloads are protocol buffer messages. The message set is small and fixed,
// so the encoders are written directly against protowire rather than
// generated from a .proto file. Field numbers are stable and documented on
// each type; unknown fields are skipped on decode so older and newer peers
// interoperate.
//
// UDP datagrams (discovery probe, discovery reply, telemetry) carry a single
// serialized message with no length prefix.
//
// Example:
//
//	req := &wire.ClientRequest{Command: wire.CmdListDevices}
//	if err := wire.WriteMessage(conn, req); err != nil {
//	    return err
//	}
//	var resp wire.ClientResponse
//	if err := wire.ReadMessage(conn, &resp); err != nil {
//	    return err
//	}
package wire
