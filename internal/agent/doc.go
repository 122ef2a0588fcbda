// Package agent hosts one appliance on the network.
//
// An Agent runs three loops under one errgroup:
//   - a TCP command server answering framed DeviceCommand requests
//   - a discovery responder answering gateway probes on the multicast group
//   - a telemetry pusher sending SensorSample datagrams once a gateway is known
//
// The device ID is "{type}_{advertise_ip}_{port}" and is fixed once the
// command port is bound.
package agent
