//go:build linux

package iomgr

import (
	"fmt"
	"strings"

	"awaitio/internal/aio"
)

// dumpInflight lists the requests the ring still owns. Ring goroutine only.
func (m *IoMgr) dumpInflight() string {
	var b strings.Builder
	fmt.Fprintf(&b, "IoMgr | Slots: %d, Free: %d\n", m.registry.Cap(), m.registry.Free())
	m.registry.Held(func(ticket int, r *aio.Request) {
		fmt.Fprintf(&b, "   | [%03d] gen %d %v\n", ticket, m.gens[ticket], r)
	})
	return b.String()
}
