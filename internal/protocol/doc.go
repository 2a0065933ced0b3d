// Package protocol owns the PC<->MAIN wire contract and its parsing primitives.
//
// Ownership boundary:
// - frame layout constants and the Frame value
// - CRC16 and sign-magnitude byte helpers
// - Codec (single-frame encode/decode) and the FrameError taxonomy
//
// Stream reassembly lives in protocol/frame, the command catalogue in
// protocol/schema and the concurrent session in protocol/session.
package protocol
