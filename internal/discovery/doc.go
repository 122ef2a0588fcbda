// Package discovery implements the multicast discovery protocol on both
// sides of the link.
//
// # Gateway side
//
// Service drives the discovery cycle. On every tick (and once at startup) it
// evicts stale records, then multicasts a GATEWAY_DISCOVERY DeviceCommand to
// the group. A long-lived UDP listener on the reply port turns each
// DeviceDiscovery reply into a registry upsert keyed "{type}_{ip}_{port}".
//
//	gateway                      group 224.0.0.1:50000           agent
//	   │── DeviceCommand{GATEWAY_DISCOVERY} ──────────────────────▶│
//	   │◀──────────────── DeviceDiscovery (unicast to :50001) ─────│
//
// Two eviction modes are supported:
//
//   - ttl (default): records silent for stale_after_cycles periods are
//     removed one by one, so a device never vanishes between a probe and
//     its reply.
//   - reset: the registry is cleared at the start of every cycle.
//
// # Agent side
//
// Responder joins the group (with address reuse so several agents share a
// host), remembers the sender of each probe as the gateway and answers with
// the agent's current DeviceDiscovery.
package discovery
