// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surfaces

// InputChannel is a bidirectional event channel between the server and the
// client that owns a surface. The client end is sent to the client process.
type InputChannel interface {
	ClientFD() int
	ServerFD() int
}
