package smp

// apTrampolineEntryAddr returns the address apTrampolineEntry is linked at,
// so installTrampoline can patch it into the trampoline page's final
// indirect call slot. Its body lives in ap_386.s, following the same
// bodyless-Go-func convention kernel/gdt and kernel/irq use for code a plain
// Go function cannot express (here, a function whose address needs to be
// taken before Go's paging and stack are set up for the calling CPU).
func apTrampolineEntryAddr() uintptr

// apTrampolineEntry is the first normal (32-bit, flat-addressed) code an AP
// runs once the raw trampoline bytes have handed off. It calls into apMain
// on the stack the trampoline set up and halts forever if apMain ever
// returns, which it is not meant to do.
func apTrampolineEntry()
