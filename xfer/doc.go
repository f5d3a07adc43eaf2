// Package xfer streams a fixed buffer over a clocked parallel bus.
//
// A Buffer and a Channel each have exactly one owner. Channel.Submit moves
// both into a Transfer while the hardware clocks the buffer out, and
// Transfer.Wait hands them back once the last byte has left the bus:
//
//	buf, _ := xfer.Alloc(256)
//	buf.Fill(xfer.FillPattern)
//	ch, _ := xfer.NewChannel(engine, cfg)
//	t, err := ch.Submit(buf)
//	if err != nil {
//		panic(err)
//	}
//	ch, buf = t.Wait()
//
// Loop repeats that cycle forever with a fixed delay between transfers.
package xfer
