// Package transport carries framed messages between the client and the
// scanning daemon.
//
// The transport layer handles:
//   - Length-prefixed message framing
//   - The named FIFO channel between the two processes
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR Records              │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   FIFO pair (c2s, s2c)         │
//	└────────────────────────────────┘
//
// The length prefix uses the host byte order since both processes run on
// the same machine. Complete pages cross the channel as single messages,
// so the default size limit is generous.
//
// # Channel
//
// NewFIFOPair creates two FIFOs inside a fresh temporary directory named
// with a UUID. The client writes requests into c2s and reads responses
// from s2c; the daemon does the opposite. Both sides open c2s first so the
// blocking FIFO opens pair up without deadlock.
package transport
