package kernel

import (
	"log"
	"os"

	"caller"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// diag is the structured logger the kernel uses for recovery decisions and
// corruption reports. The teacher has no logging package of its own (it
// writes straight to a serial console with fmt); this keeps that plain
// idiom but routes it through log.Logger so every line is timestamped, and
// formats any byte/flush counts with golang.org/x/text so an operator
// reading a boot summary sees "1,048,576" rather than "1048576".
type diag struct {
	l *log.Logger
	p *message.Printer
}

func newDiag() *diag {
	return &diag{
		l: log.New(os.Stderr, "liumos: ", log.Ltime|log.Lmicroseconds),
		p: message.NewPrinter(language.English),
	}
}

// corrupt logs a rejected PersistentProcessInfo record, naming the record's
// slot and the call site that discovered it (spec.md §7: "logged, and left
// untouched so an operator can inspect it").
func (d *diag) corrupt(slot int, reason error) {
	d.l.Printf("corrupt PMEM record at slot %d: %v\n\t%s", slot, reason, caller.Site(2))
}

// recovered logs a successfully recovered process.
func (d *diag) recovered(pid int, slot int) {
	d.l.Printf("recovered process pid=%d from slot=%d", pid, slot)
}

// summary logs a human-readable, locale-formatted count, used for the
// post-recovery "N processes recovered from M bytes of PMEM" line.
func (d *diag) summary(format string, args ...interface{}) {
	d.l.Println(d.p.Sprintf(format, args...))
}
