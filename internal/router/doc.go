// Package router serves client requests on the gateway's TCP command port
// and forwards device commands to agents.
//
// Each client connection carries a sequence of framed ClientRequest /
// ClientResponse exchanges. LIST_DEVICES is answered from the registry.
// CONTROL_DEVICE, GET_STATUS and SET_STATUS open a fresh TCP session to the
// target agent through the Dispatcher, relay the agent's DeviceResponse, and
// store any returned status in the registry.
//
// Dispatcher sessions are never pooled. A weighted semaphore caps how many run
// at once and each session is bounded by a deadline.
package router
