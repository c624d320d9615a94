package renderer

import (
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// GPUFence wraps a GL sync object so the consumer can confirm a batch's
// vertex uploads actually reached the GPU before fencing back to the
// producer.
type GPUFence struct {
	sync uintptr
}

// InsertFence places a fence after the commands issued so far.
func InsertFence() *GPUFence {
	return &GPUFence{sync: gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)}
}

// Wait blocks until the GPU passes the fence or the timeout elapses.
// Returns false on timeout; the caller proceeds regardless.
func (f *GPUFence) Wait(timeout time.Duration) bool {
	if f == nil || f.sync == 0 {
		return true
	}
	status := gl.ClientWaitSync(f.sync, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(timeout.Nanoseconds()))
	return status == gl.ALREADY_SIGNALED || status == gl.CONDITION_SATISFIED
}

// Delete frees the sync object.
func (f *GPUFence) Delete() {
	if f != nil && f.sync != 0 {
		gl.DeleteSync(f.sync)
		f.sync = 0
	}
}
