// Package buffer provides interleaved multichannel sample buffers and a
// fixed-shape pool for them.
//
// The capture path draws block buffers from a Pool so that a session
// running for days keeps a fixed working set: every buffer handed out is
// returned once its block has been analyzed and written, or dropped.
// Outstanding and Peak expose that working set.
package buffer
