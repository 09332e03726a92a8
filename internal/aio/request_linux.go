//go:build linux

package aio

// On the completion-queue model the kernel only keeps the user data we
// attached to the SQE; the dispatcher decides what it encodes.
type sysRequest struct {
	userData uint64
}

func (r *Request) UserData() uint64 {
	return r.sys.userData
}

func (r *Request) SetUserData(v uint64) {
	r.sys.userData = v
}
